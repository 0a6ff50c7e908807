package utils

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// BindRequest decodes the request body into T and validates it. Failures are 400s; validation
// failures carry the offending json fields under meta "fields".
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := (&echo.DefaultBinder{}).BindBody(c, &v); err != nil {
		return v, httperror.WrapError(http.StatusBadRequest, err)
	}

	if _, err := Validate(v); err != nil {
		return v, httperror.NewHTTPError(http.StatusBadRequest, err.Error()).AddMetaValue("fields", FieldErrors(v))
	}

	return v, nil
}
