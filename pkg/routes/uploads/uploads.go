package uploads

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "github.com/mathew-h/experiment-tracking-sub000/pkg/errors"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/icp"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/results"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

type bulkRequest struct {
	Rows      []results.Payload `json:"rows" validate:"required"`
	Overwrite bool              `json:"overwrite"`
}

type longFormatRequest struct {
	Measurements []icp.Measurement `json:"measurements" validate:"required,dive"`
}

type LongFormatResponse struct {
	Samples          int                 `json:"samples"`
	ProcessingErrors []string            `json:"processing_errors"`
	Result           *results.BulkResult `json:"result"`
}

type handler struct {
	service *results.Service
}

// Register registers result upload routes
func Register(g *echo.Group, service *results.Service) {
	h := &handler{service: service}

	g.POST("/results/scalar", h.upsertScalar)
	g.POST("/results/scalar/bulk", h.bulkScalar)
	g.POST("/results/icp", h.upsertICP)
	g.POST("/results/icp/bulk", h.bulkICP)
	g.POST("/results/icp/long", h.longFormatICP)
}

// upsertScalar merges one payload; ?overwrite=true replaces the stored record
func (h *handler) upsertScalar(c echo.Context) error {
	payload, err := bindPayload(c)
	if err != nil {
		return err
	}
	overwrite := utils.ToBool(c.QueryParam("overwrite"))
	res, err := h.service.UpsertScalar(c.Request().Context(), payload.ExperimentID(), payload, overwrite)
	if err != nil {
		return err
	}
	return c.JSON(statusFor(res.Action), res)
}

func (h *handler) upsertICP(c echo.Context) error {
	payload, err := bindPayload(c)
	if err != nil {
		return err
	}
	res, err := h.service.UpsertICPDetailed(c.Request().Context(), payload.ExperimentID(), payload)
	if err != nil {
		return err
	}
	return c.JSON(statusFor(res.Action), res)
}

func (h *handler) bulkScalar(c echo.Context) error {
	req, err := utils.BindRequest[bulkRequest](c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.BulkUpsertScalar(c.Request().Context(), req.Rows, req.Overwrite))
}

func (h *handler) bulkICP(c echo.Context) error {
	req, err := utils.BindRequest[bulkRequest](c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.service.BulkUpsertICP(c.Request().Context(), req.Rows))
}

// longFormatICP accepts the instrument export as text/csv or as JSON measurements
func (h *handler) longFormatICP(c echo.Context) error {
	var rows []icp.Measurement
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), "text/csv") {
		parsed, err := icp.ReadCSV(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		rows = parsed
	} else {
		req, err := utils.BindRequest[longFormatRequest](c)
		if err != nil {
			return err
		}
		rows = req.Measurements
	}

	payloads, processingErrors := icp.ProcessLongFormat(rows)
	return c.JSON(http.StatusOK, LongFormatResponse{
		Samples:          len(payloads),
		ProcessingErrors: processingErrors,
		Result:           h.service.BulkUpsertICP(c.Request().Context(), payloads),
	})
}

func bindPayload(c echo.Context) (results.Payload, error) {
	payload := results.Payload{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &payload); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if payload.ExperimentID() == "" {
		return nil, apperrors.NewValidationError(results.KeyExperimentID, "experiment_id is required")
	}
	return payload, nil
}

func statusFor(action results.Action) int {
	if action == results.ActionCreated {
		return http.StatusCreated
	}
	return http.StatusOK
}
