package experiments

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mathew-h/experiment-tracking-sub000/pkg/experiments"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/utils"
)

type handler struct {
	service *experiments.Service
}

// Register registers experiment, note, condition and lineage routes
func Register(g *echo.Group, service *experiments.Service) {
	h := &handler{service: service}

	g.POST("/experiments", h.create)
	g.GET("/experiments", h.list)
	g.GET("/experiments/:id", h.get)
	g.PUT("/experiments/:id", h.rename)
	g.DELETE("/experiments/:id", h.delete)
	g.GET("/experiments/:id/lineage", h.lineage)
	g.POST("/experiments/:id/notes", h.addNote)
	g.GET("/experiments/:id/notes", h.listNotes)
	g.PUT("/experiments/:id/conditions", h.upsertConditions)
	g.GET("/experiments/:id/conditions", h.getConditions)
	g.GET("/experiments/:id/results", h.results)
	g.POST("/experiments/:id/cumulative", h.recomputeCumulative)
	g.POST("/treatments", h.createTreatment)
}

func (h *handler) create(c echo.Context) error {
	req, err := utils.BindRequest[models.CreateExperimentRequest](c)
	if err != nil {
		return err
	}
	exp, err := h.service.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, exp)
}

func (h *handler) createTreatment(c echo.Context) error {
	req, err := utils.BindRequest[models.CreateTreatmentRequest](c)
	if err != nil {
		return err
	}
	exp, err := h.service.CreateTreatment(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, exp)
}

// list takes an optional ?base= lineage family filter
func (h *handler) list(c echo.Context) error {
	list, err := h.service.List(c.Request().Context(), c.QueryParam("base"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (h *handler) get(c echo.Context) error {
	exp, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exp)
}

func (h *handler) rename(c echo.Context) error {
	req, err := utils.BindRequest[models.RenameExperimentRequest](c)
	if err != nil {
		return err
	}
	exp, err := h.service.Rename(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exp)
}

func (h *handler) delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) lineage(c echo.Context) error {
	view, err := h.service.Lineage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

func (h *handler) addNote(c echo.Context) error {
	req, err := utils.BindRequest[models.CreateNoteRequest](c)
	if err != nil {
		return err
	}
	n, err := h.service.AddNote(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *handler) listNotes(c echo.Context) error {
	notes, err := h.service.ListNotes(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, notes)
}

func (h *handler) upsertConditions(c echo.Context) error {
	values := map[string]any{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &values); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cond, err := h.service.UpsertConditions(c.Request().Context(), c.Param("id"), values)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *handler) getConditions(c echo.Context) error {
	cond, err := h.service.GetConditions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	if cond == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no conditions recorded")
	}
	return c.JSON(http.StatusOK, cond)
}

func (h *handler) results(c echo.Context) error {
	details, err := h.service.Results(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, details)
}

func (h *handler) recomputeCumulative(c echo.Context) error {
	rows, err := h.service.RecomputeCumulative(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"rows_updated": rows})
}
