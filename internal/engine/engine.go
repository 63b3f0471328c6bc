package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"tradesim/internal/config"
	"tradesim/internal/model"
	"tradesim/internal/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const historySize = 50

// Engine orchestrates simulation runs: it executes the configured runner,
// keeps the latest result in the store, and notifies listeners.
type Engine struct {
	store     *Store
	defaults  config.SimulationSettings
	metrics   *observability.Metrics
	logger    *zap.Logger
	started   time.Time
	now       func() time.Time
	mu        sync.Mutex
	runs      int64
	failures  int64
	history   []model.RunSummary
	listeners []func(model.RunSummary)
}

// Status represents the current engine state for API consumers.
type Status struct {
	Time      time.Time                 `json:"time"`
	StartedAt time.Time                 `json:"startedAt"`
	Runs      int64                     `json:"runs"`
	Failures  int64                     `json:"failures"`
	Snapshot  StoreSnapshot             `json:"snapshot"`
	Defaults  config.SimulationSettings `json:"defaults"`
	LastRuns  []model.RunSummary        `json:"lastRuns"`
}

// New creates an Engine using the simulation section of cfg as defaults.
func New(cfg *config.Config, metrics *observability.Metrics) *Engine {
	if metrics == nil {
		metrics = observability.NewMetrics("")
	}
	return &Engine{
		store:    NewStore(),
		defaults: cfg.Simulation,
		metrics:  metrics,
		logger:   zap.NewNop(),
		started:  time.Now(),
		now:      time.Now,
	}
}

// SetLogger sets the structured logger for the engine.
func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Store returns the underlying result store.
func (e *Engine) Store() *Store {
	return e.store
}

// Defaults returns the configured simulation settings.
func (e *Engine) Defaults() config.SimulationSettings {
	return e.defaults
}

// OnRun registers a callback invoked after every successful run.
func (e *Engine) OnRun(fn func(model.RunSummary)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Simulate runs one simulation with the given settings, replaces the stored
// result, and returns a summary with metrics over all variations.
func (e *Engine) Simulate(ctx context.Context, settings config.SimulationSettings) (model.RunSummary, error) {
	params := settings.Params()
	seed := settings.Seed
	if seed == 0 {
		seed = e.now().UnixNano()
	}
	mode := "sequential"
	if settings.Parallel {
		mode = "parallel"
	}

	start := time.Now()
	var (
		result *model.SimulationResult
		err    error
	)
	if settings.Parallel {
		result, err = RunParallel(ctx, params, seed, settings.Workers)
	} else {
		result, err = RunSimulation(params, NewSeededRand(seed))
	}
	elapsed := time.Since(start)

	if err != nil {
		e.metrics.RunsTotal.WithLabelValues(mode, "error").Inc()
		e.mu.Lock()
		e.failures++
		e.mu.Unlock()
		e.logger.Warn("simulation_failed",
			zap.String("mode", mode),
			zap.Int("min_ticks_profit", params.MinTicksProfit),
			zap.Int("max_ticks_profit", params.MaxTicksProfit),
			zap.Error(err),
		)
		return model.RunSummary{}, err
	}

	metrics, err := ComputeMetrics(result, result.IDs())
	if err != nil {
		e.metrics.RunsTotal.WithLabelValues(mode, "error").Inc()
		return model.RunSummary{}, err
	}
	e.observeMetrics(metrics)
	e.store.Replace(result)

	summary := model.RunSummary{
		RunID:      uuid.NewString(),
		Config:     params,
		Metrics:    metrics.Finite(),
		Parallel:   settings.Parallel,
		Seed:       seed,
		Duration:   elapsed,
		FinishedAt: e.now(),
	}

	e.metrics.RunsTotal.WithLabelValues(mode, "ok").Inc()
	e.metrics.RunDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	e.metrics.TradesSimulated.Add(float64(params.NumTrades * params.NumVariations))
	e.metrics.VariationsSimulated.Add(float64(params.NumVariations))
	e.metrics.LastSuccessfulRun.Set(float64(summary.FinishedAt.Unix()))

	e.mu.Lock()
	e.runs++
	e.history = append(e.history, summary)
	if len(e.history) > historySize {
		e.history = e.history[len(e.history)-historySize:]
	}
	listeners := make([]func(model.RunSummary), len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	if params.LossRate() < 0 {
		e.logger.Warn("negative_loss_rate",
			zap.String("run_id", summary.RunID),
			zap.Float64("breakeven_rate", params.BreakevenRate),
			zap.Float64("adjusted_win_rate", params.AdjustedWinRate()),
		)
	}
	e.logger.Info("simulation_completed",
		zap.String("run_id", summary.RunID),
		zap.String("mode", mode),
		zap.Int64("seed", seed),
		zap.Int("variations", params.NumVariations),
		zap.Int("trades", params.NumTrades),
		zap.Float64("avg_final_profit", metrics.AverageFinalProfit),
		zap.Float64("max_drawdown", metrics.MaxDrawdown),
		zap.Duration("elapsed", elapsed),
	)

	for _, fn := range listeners {
		fn(summary)
	}
	return summary, nil
}

// Select changes the displayed subset of variations.
func (e *Engine) Select(ids []int) error {
	if err := e.store.Select(ids); err != nil {
		return err
	}
	e.logger.Debug("selection_changed", zap.Ints("variations", ids))
	return nil
}

// Metrics recomputes risk metrics over the current selection. The raw
// values are returned; Sharpe may be NaN.
func (e *Engine) Metrics() (model.RiskMetrics, error) {
	result, ok := e.store.Result()
	if !ok {
		return model.RiskMetrics{}, ErrNoResult
	}
	m, err := ComputeMetrics(result, e.store.Selected())
	if err != nil {
		return model.RiskMetrics{}, err
	}
	e.observeMetrics(m)
	return m, nil
}

func (e *Engine) observeMetrics(m model.RiskMetrics) {
	e.metrics.MetricsComputed.Inc()
	if math.IsNaN(m.SharpeRatio) || math.IsInf(m.SharpeRatio, 0) {
		e.metrics.DegenerateSharpe.Inc()
	}
}

// History returns the most recent run summaries, oldest first.
func (e *Engine) History() []model.RunSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.RunSummary, len(e.history))
	copy(out, e.history)
	return out
}

// Status returns the current engine status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	runs, failures := e.runs, e.failures
	e.mu.Unlock()

	return Status{
		Time:      e.now(),
		StartedAt: e.started,
		Runs:      runs,
		Failures:  failures,
		Snapshot:  e.store.Snapshot(),
		Defaults:  e.defaults,
		LastRuns:  e.History(),
	}
}
