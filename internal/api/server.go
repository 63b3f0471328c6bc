package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/engine"
	"tradesim/internal/model"
	"tradesim/internal/observability"
	"tradesim/internal/report"

	"go.uber.org/zap"
)

// Simulator is the engine surface the API depends on.
type Simulator interface {
	Simulate(ctx context.Context, settings config.SimulationSettings) (model.RunSummary, error)
	Select(ids []int) error
	Metrics() (model.RiskMetrics, error)
	Status() engine.Status
	Store() *engine.Store
	Defaults() config.SimulationSettings
}

// Server is the REST API + WebSocket server.
type Server struct {
	engine  Simulator
	hub     *Hub
	metrics *observability.Metrics
	logger  *zap.Logger
	mux     *http.ServeMux
	srv     *http.Server
	address string
}

// NewServer creates an API server.
func NewServer(address string, sim Simulator, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics("")
	}
	s := &Server{
		engine:  sim,
		hub:     NewHub(logger),
		metrics: metrics,
		logger:  logger,
		mux:     http.NewServeMux(),
		address: address,
	}
	s.registerRoutes()
	return s
}

// HubRef returns the WebSocket hub for broadcasting.
func (s *Server) HubRef() *Hub {
	return s.hub
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/simulate", s.handleSimulate)
	s.mux.HandleFunc("/api/selection", s.handleSelection)
	s.mux.HandleFunc("/api/metrics", s.handleMetrics)
	s.mux.HandleFunc("/api/chart", s.handleChart)
	s.mux.HandleFunc("/api/table", s.handleTable)
	s.mux.HandleFunc("/api/export.csv", s.handleExportCSV)
	s.mux.HandleFunc("/api/export.xlsx", s.handleExportXLSX)
	s.mux.Handle("/metrics", s.metrics.Handler())
	s.mux.HandleFunc("/ws", s.handleWebSocket)
}

// Run starts the HTTP server and the WebSocket hub.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)

	s.srv = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api_server_started", zap.String("address", s.address))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      map[string]string{"status": "ok"},
		Timestamp: time.Now(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      s.engine.Status(),
		Timestamp: time.Now(),
	})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	// Fields absent from the body keep the configured defaults.
	settings := s.engine.Defaults()
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
	}
	if err := config.ValidateSettings(settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := s.engine.Simulate(r.Context(), settings)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrInvalidTickRange) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	s.logger.Info("api_simulate",
		zap.String("run_id", summary.RunID),
		zap.Int("variations", summary.Config.NumVariations),
		zap.Int("trades", summary.Config.NumTrades),
	)

	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      summary,
		Timestamp: time.Now(),
	})
}

type selectionRequest struct {
	Variations []int `json:"variations"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, model.APIResponse{
			Data:      selectionRequest{Variations: s.engine.Store().Selected()},
			Timestamp: time.Now(),
		})
	case http.MethodPost:
		var req selectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if err := s.engine.Select(req.Variations); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		selected := selectionRequest{Variations: s.engine.Store().Selected()}
		s.hub.Broadcast("selection", selected)
		writeJSON(w, http.StatusOK, model.APIResponse{
			Data:      selected,
			Timestamp: time.Now(),
		})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

// metricsView is the display form of RiskMetrics.
type metricsView struct {
	Metrics model.RiskMetrics `json:"metrics"`
	Lines   []string          `json:"lines"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Metrics()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{
		Data:      metricsView{Metrics: m.Finite(), Lines: report.Summary(m)},
		Timestamp: time.Now(),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	result, ok := s.engine.Store().Result()
	if !ok {
		writeError(w, http.StatusNotFound, engine.ErrNoResult.Error())
		return
	}
	series, err := report.ChartSeries(result, s.engine.Store().Selected())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{Data: series, Timestamp: time.Now()})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	table, ok := s.buildTable(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, model.APIResponse{Data: table, Timestamp: time.Now()})
}

// The export covers every variation, matching the downloadable table.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	table, ok := s.buildTable(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, table); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.ExportsTotal.WithLabelValues("csv").Inc()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="simulation_results.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	result, ok := s.engine.Store().Result()
	if !ok {
		writeError(w, http.StatusNotFound, engine.ErrNoResult.Error())
		return
	}
	m, err := s.engine.Metrics()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, result, nil, m); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.ExportsTotal.WithLabelValues("xlsx").Inc()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="simulation_results.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) buildTable(w http.ResponseWriter) (report.Table, bool) {
	result, ok := s.engine.Store().Result()
	if !ok {
		writeError(w, http.StatusNotFound, engine.ErrNoResult.Error())
		return report.Table{}, false
	}
	table, err := report.BuildTable(result, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return report.Table{}, false
	}
	return table, true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleUpgrade(w, r)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoResult):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoSelection), errors.Is(err, engine.ErrUnknownVariation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.APIResponse{
		Error:     msg,
		Timestamp: time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
