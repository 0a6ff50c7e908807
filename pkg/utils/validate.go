package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToString(value, err)
	}

	return value, nil
}

// FieldErrors flattens validator failures into (field tag name, message) pairs.
// The field name is the struct's json tag when present.
func FieldErrors(value any) map[string]string {
	err := validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fieldName(value, fe.StructField())] = fmt.Sprintf("rule '%s' expected '%s', got '%v'", fe.Tag(), fe.Param(), derefValue(fe.Value()))
	}
	return out
}

func ValidationErrorToString(input any, err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		msg := ""
		for _, fe := range verrs {
			msg += fmt.Sprintf("\n • Failed %T validation for field '%s': rule '%s' expected '%s', got '%v'.", input, fe.StructField(), fe.Tag(), fe.Param(), derefValue(fe.Value()))
		}
		return errors.New(strings.TrimSpace(msg))
	}

	return err
}
