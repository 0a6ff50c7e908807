package timepoints

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/experiments"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

type ensurePrimaryRequest struct {
	ExperimentID     string   `json:"experiment_id" validate:"required"`
	TimePostReaction *float64 `json:"time_post_reaction" validate:"required"`
}

type handler struct {
	service *experiments.Service
}

// Register registers timepoint maintenance routes
func Register(g *echo.Group, service *experiments.Service) {
	h := &handler{service: service}
	g.POST("/timepoints/primary", h.ensurePrimary)
}

func (h *handler) ensurePrimary(c echo.Context) error {
	req, err := utils.BindRequest[ensurePrimaryRequest](c)
	if err != nil {
		return err
	}
	primary, err := h.service.EnsurePrimary(c.Request().Context(), req.ExperimentID, *req.TimePostReaction)
	if err != nil {
		return err
	}
	if primary == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no results in that time bucket")
	}
	return c.JSON(http.StatusOK, primary)
}
