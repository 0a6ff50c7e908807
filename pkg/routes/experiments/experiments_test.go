package experiments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathew-h/experiment-tracking-sub000/config"
	"github.com/mathew-h/experiment-tracking-sub000/internal/app"
	"github.com/mathew-h/experiment-tracking-sub000/internal/testutil"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/middleware"
	"github.com/mathew-h/experiment-tracking-sub000/pkg/models"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	logger := testutil.Logger()
	services := app.NewServices(testutil.NewDB(t), logger, app.Options{Rules: config.DefaultInheritanceRules()})

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())
	Register(e.Group("/api/v1"), services.Experiments)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestExperimentRoutes(t *testing.T) {
	e := newServer(t)

	rec := do(t, e, http.MethodPost, "/api/v1/experiments", `{"experiment_id":"HPHT_001","note":"first"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, e, http.MethodPost, "/api/v1/experiments", `{"experiment_id":"HPHT_001-2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var child models.Experiment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &child))
	assert.Equal(t, "HPHT_001", child.BaseExperimentID)
	assert.NotNil(t, child.ParentFK)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		expect string
	}{
		{name: "get fuzzy", method: http.MethodGet, path: "/api/v1/experiments/hpht-001", status: http.StatusOK, expect: `"experiment_id":"HPHT_001"`},
		{name: "get missing", method: http.MethodGet, path: "/api/v1/experiments/HPHT_404", status: http.StatusNotFound, expect: "HPHT_404"},
		{name: "list family", method: http.MethodGet, path: "/api/v1/experiments?base=hpht_001", status: http.StatusOK, expect: "HPHT_001-2"},
		{name: "duplicate", method: http.MethodPost, path: "/api/v1/experiments", body: `{"experiment_id":"hpht 001"}`, status: http.StatusConflict},
		{name: "missing id", method: http.MethodPost, path: "/api/v1/experiments", body: `{}`, status: http.StatusBadRequest},
		{name: "lineage", method: http.MethodGet, path: "/api/v1/experiments/HPHT_001-2/lineage", status: http.StatusOK, expect: `"kind":"sequential"`},
		{name: "add note", method: http.MethodPost, path: "/api/v1/experiments/HPHT_001/notes", body: `{"note_text":"second"}`, status: http.StatusCreated},
		{name: "list notes", method: http.MethodGet, path: "/api/v1/experiments/HPHT_001/notes", status: http.StatusOK, expect: "second"},
		{name: "no conditions", method: http.MethodGet, path: "/api/v1/experiments/HPHT_001/conditions", status: http.StatusNotFound},
		{name: "set conditions", method: http.MethodPut, path: "/api/v1/experiments/HPHT_001/conditions", body: `{"rock_mass_g":10,"catalyst":"Ni"}`, status: http.StatusOK, expect: `"rock_mass_g":10`},
		{name: "reserved condition", method: http.MethodPut, path: "/api/v1/experiments/HPHT_001/conditions", body: `{"id":4}`, status: http.StatusBadRequest},
		{name: "results", method: http.MethodGet, path: "/api/v1/experiments/HPHT_001/results", status: http.StatusOK, expect: "[]"},
		{name: "cumulative", method: http.MethodPost, path: "/api/v1/experiments/HPHT_001/cumulative", status: http.StatusOK, expect: "rows_updated"},
		{name: "treatment", method: http.MethodPost, path: "/api/v1/treatments", body: `{"experiment_id":"HPHT_001_Desorption"}`, status: http.StatusBadRequest},
		{name: "rename", method: http.MethodPut, path: "/api/v1/experiments/HPHT_001-2", body: `{"experiment_id":"HPHT_001-3"}`, status: http.StatusOK, expect: "HPHT_001-3"},
		{name: "delete", method: http.MethodDelete, path: "/api/v1/experiments/HPHT_001-3", status: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: "/api/v1/experiments/HPHT_001-3", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, e, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.expect != "" {
				assert.Contains(t, rec.Body.String(), tt.expect)
			}
		})
	}
}
