package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tradesim/internal/config"
	"tradesim/internal/engine"
	"tradesim/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func newTestServer(t *testing.T) (*Server, *engine.Engine, *observability.Metrics) {
	t.Helper()
	cfg := config.Default()
	cfg.Simulation.Seed = 7
	cfg.Simulation.NumTrades = 20
	cfg.Simulation.NumVariations = 3
	m := observability.NewMetrics("apitest")
	eng := engine.New(cfg, m)
	eng.SetLogger(zaptest.NewLogger(t))
	return NewServer(":0", eng, m, zaptest.NewLogger(t)), eng, m
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec, env := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOptionsPreflight(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec, _ := do(t, s, http.MethodOptions, "/api/simulate", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSimulate_UsesDefaultsAndOverrides(t *testing.T) {
	s, eng, _ := newTestServer(t)

	rec, env := do(t, s, http.MethodPost, "/api/simulate", `{"numVariations":5,"seed":11}`)
	require.Equal(t, http.StatusOK, rec.Code, env.Error)

	var summary struct {
		RunID  string `json:"runId"`
		Seed   int64  `json:"seed"`
		Config struct {
			NumTrades     int `json:"numTrades"`
			NumVariations int `json:"numVariations"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, int64(11), summary.Seed)
	assert.Equal(t, 20, summary.Config.NumTrades)
	assert.Equal(t, 5, summary.Config.NumVariations)

	result, ok := eng.Store().Result()
	require.True(t, ok)
	assert.Len(t, result.Variations, 5)
}

func TestSimulate_Errors(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, `{"numTrades":`, http.StatusBadRequest},
		{"out of range", http.MethodPost, `{"numTrades":5000}`, http.StatusBadRequest},
		{"bad contracts", http.MethodPost, `{"contracts":7}`, http.StatusBadRequest},
		{"min not below max", http.MethodPost, `{"minTicksProfit":6,"maxTicksProfit":6}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, tt.method, "/api/simulate", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestEndpointsWithoutResult(t *testing.T) {
	s, _, _ := newTestServer(t)
	for _, path := range []string{"/api/metrics", "/api/chart", "/api/table", "/api/export.csv", "/api/export.xlsx"} {
		rec, env := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, engine.ErrNoResult.Error(), env.Error, path)
	}
}

func TestSelectionAndMetrics(t *testing.T) {
	s, eng, _ := newTestServer(t)
	rec, _ := do(t, s, http.MethodPost, "/api/simulate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, s, http.MethodGet, "/api/selection", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"variations":[1,2,3]}`, string(env.Data))

	rec, env = do(t, s, http.MethodPost, "/api/selection", `{"variations":[3,1,3]}`)
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	assert.JSONEq(t, `{"variations":[1,3]}`, string(env.Data))
	assert.Equal(t, []int{1, 3}, eng.Store().Selected())

	rec, env = do(t, s, http.MethodPost, "/api/selection", `{"variations":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, engine.ErrNoSelection.Error(), env.Error)

	rec, _ = do(t, s, http.MethodPost, "/api/selection", `{"variations":[9]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Lines, 3)
	assert.True(t, strings.HasPrefix(view.Lines[0], "Average Cumulative Profits: $"))

	rec, env = do(t, s, http.MethodGet, "/api/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var series []struct {
		Label  string    `json:"label"`
		Points []float64 `json:"points"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &series))
	require.Len(t, series, 2)
	assert.Equal(t, "Variation 1", series[0].Label)
	assert.Equal(t, "Variation 3", series[1].Label)
	assert.Len(t, series[0].Points, 20)
}

func TestTableAndExports(t *testing.T) {
	s, _, m := newTestServer(t)
	rec, _ := do(t, s, http.MethodPost, "/api/simulate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, s, http.MethodGet, "/api/table", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var table struct {
		Headers []string   `json:"headers"`
		Rows    [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &table))
	assert.Len(t, table.Headers, 6)
	assert.Len(t, table.Rows, 20)

	rec, _ = do(t, s, http.MethodGet, "/api/export.csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 21)
	assert.True(t, strings.HasPrefix(lines[0], "Variation 1,Ticks 1"))

	rec, _ = do(t, s, http.MethodGet, "/api/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "Simulation")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues("csv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues("xlsx")))
}

func TestStatusAndPrometheus(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/simulate", "")

	rec, env := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Runs     int64 `json:"runs"`
		Snapshot struct {
			HasResult bool `json:"hasResult"`
		} `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, int64(1), status.Runs)
	assert.True(t, status.Snapshot.HasResult)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	prom := httptest.NewRecorder()
	s.Handler().ServeHTTP(prom, req)
	require.Equal(t, http.StatusOK, prom.Code)
	assert.Contains(t, prom.Body.String(), "apitest_simulation_runs_total")
}
