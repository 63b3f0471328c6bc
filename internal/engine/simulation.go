package engine

import (
	"context"
	"fmt"
	"runtime"

	"tradesim/internal/model"

	"golang.org/x/sync/errgroup"
)

// Validate checks the one constraint the engine owns. Range checks on the
// remaining fields belong to the caller (see config.Validate).
func Validate(cfg model.SimulationConfig) error {
	if cfg.MinTicksProfit >= cfg.MaxTicksProfit {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidTickRange, cfg.MinTicksProfit, cfg.MaxTicksProfit)
	}
	return nil
}

// RunSimulation runs every variation sequentially from a single shared
// stream. For a given rng state the output is bit-identical across calls.
func RunSimulation(cfg model.SimulationConfig, rng Rand) (*model.SimulationResult, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	result := &model.SimulationResult{
		Config:     cfg,
		Variations: make([]model.VariationRun, 0, max(cfg.NumVariations, 0)),
	}
	for id := 1; id <= cfg.NumVariations; id++ {
		result.Variations = append(result.Variations, simulateVariation(id, cfg, rng))
	}

	if err := checkShape(result); err != nil {
		return nil, err
	}
	return result, nil
}

// RunParallel runs variations concurrently. Variation i draws from its own
// stream seeded with VariationSeed(seed, i), so output is reproducible for a
// fixed seed regardless of worker count, but differs from RunSimulation.
func RunParallel(ctx context.Context, cfg model.SimulationConfig, seed int64, workers int) (*model.SimulationResult, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	runs := make([]model.VariationRun, max(cfg.NumVariations, 0))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range runs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := i + 1
			runs[i] = simulateVariation(id, cfg, NewSeededRand(VariationSeed(seed, id)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &model.SimulationResult{Config: cfg, Variations: runs}
	if err := checkShape(result); err != nil {
		return nil, err
	}
	return result, nil
}

// simulateVariation draws NumTrades trades and accumulates their profit.
// The cumulative series starts at the first trade's value, not at zero.
func simulateVariation(id int, cfg model.SimulationConfig, rng Rand) model.VariationRun {
	n := max(cfg.NumTrades, 0)
	run := model.VariationRun{
		ID:         id,
		Trades:     make([]model.TradeOutcome, n),
		Cumulative: make([]float64, n),
		Ticks:      make([]int, n),
	}

	cumulative := 0.0
	for i := 0; i < n; i++ {
		trade := GenerateTrade(cfg, rng)
		cumulative += trade.ProfitDelta
		run.Trades[i] = trade
		run.Cumulative[i] = cumulative
		run.Ticks[i] = trade.Ticks
	}
	return run
}

// checkShape rejects results that would render as a mismatched table.
func checkShape(result *model.SimulationResult) error {
	if len(result.Variations) == 0 {
		return fmt.Errorf("%w: zero variations", ErrEmptyResult)
	}
	want := len(result.Variations[0].Cumulative)
	if want == 0 {
		return fmt.Errorf("%w: zero trades", ErrEmptyResult)
	}
	for _, run := range result.Variations {
		if len(run.Cumulative) != want || len(run.Ticks) != want {
			return fmt.Errorf("%w: variation %d has %d/%d entries, want %d",
				ErrEmptyResult, run.ID, len(run.Cumulative), len(run.Ticks), want)
		}
	}
	return nil
}
