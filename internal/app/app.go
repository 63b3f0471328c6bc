package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"tradesim/internal/api"
	"tradesim/internal/config"
	"tradesim/internal/engine"
	"tradesim/internal/logging"
	"tradesim/internal/model"
	"tradesim/internal/observability"

	"go.uber.org/zap"
)

const version = "0.1.0"

// App is the application lifecycle manager.
type App struct {
	cfg *config.Config
}

// New creates a new App instance.
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Run starts the engine and API server and blocks until a shutdown signal
// or a fatal server error.
func (a *App) Run() error {
	log, err := logging.Build(a.cfg.App.LogLevel, a.cfg.App.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting tradesim",
		zap.String("version", version),
		zap.String("env", a.cfg.App.Env),
		zap.String("log_level", a.cfg.App.LogLevel),
	)

	metrics := observability.NewMetrics("tradesim")

	eng := engine.New(a.cfg, metrics)
	eng.SetLogger(log)

	srv := api.NewServer(a.cfg.API.ListenAddress, eng, metrics, log)
	eng.OnRun(func(s model.RunSummary) {
		srv.HubRef().Broadcast("run", s)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prime the store so the dashboard has something to show on first load.
	if _, err := eng.Simulate(ctx, eng.Defaults()); err != nil {
		log.Warn("initial_simulation_failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown_signal", zap.String("signal", sig.String()))
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("api_shutdown_error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("fatal_error", zap.Error(err))
			return err
		}
	}

	log.Info("tradesim stopped")
	return nil
}
