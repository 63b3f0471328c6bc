package engine

import (
	"fmt"
	"math"

	"tradesim/internal/model"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear scales the per-trade Sharpe proxy.
const TradingDaysPerYear = 252

// ComputeMetrics summarises the selected variations of a result.
//
// AverageFinalProfit is the mean of each variation's last cumulative value.
// MaxDrawdown is the largest running-peak minus current value over all
// points of all selected curves; the peak starts at the first point.
// SharpeRatio is mean(per-variation step means) / mean(per-variation step
// sample stddevs) * sqrt(252), with no capital normalisation. It is NaN
// when the averaged stddev is zero or undefined.
func ComputeMetrics(result *model.SimulationResult, selected []int) (model.RiskMetrics, error) {
	if len(selected) == 0 {
		return model.RiskMetrics{}, ErrNoSelection
	}

	runs := make([]model.VariationRun, 0, len(selected))
	for _, id := range selected {
		run, ok := result.Variation(id)
		if !ok {
			return model.RiskMetrics{}, fmt.Errorf("%w: %d", ErrUnknownVariation, id)
		}
		if len(run.Cumulative) == 0 {
			return model.RiskMetrics{}, fmt.Errorf("%w: variation %d has no trades", ErrEmptyResult, id)
		}
		runs = append(runs, run)
	}

	finals := make([]float64, len(runs))
	means := make([]float64, len(runs))
	stds := make([]float64, len(runs))
	maxDD := 0.0
	for i, run := range runs {
		finals[i] = run.Final()
		if dd := maxDrawdown(run.Cumulative); dd > maxDD {
			maxDD = dd
		}
		means[i], stds[i] = stat.MeanStdDev(stepSeries(run), nil)
	}

	return model.RiskMetrics{
		AverageFinalProfit: stat.Mean(finals, nil),
		MaxDrawdown:        maxDD,
		SharpeRatio:        sharpe(stat.Mean(means, nil), stat.Mean(stds, nil)),
	}, nil
}

// maxDrawdown returns the largest drop from the running maximum.
func maxDrawdown(cumulative []float64) float64 {
	if len(cumulative) == 0 {
		return 0
	}
	peak := cumulative[0]
	worst := 0.0
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > worst {
			worst = dd
		}
	}
	return worst
}

// stepSeries returns the per-trade profit changes of a variation. The
// recorded trade deltas are used when present so identical trades give an
// exactly zero deviation.
func stepSeries(run model.VariationRun) []float64 {
	if len(run.Trades) == len(run.Cumulative) {
		out := make([]float64, len(run.Trades))
		for i, t := range run.Trades {
			out[i] = t.ProfitDelta
		}
		return out
	}
	return run.Deltas()
}

func sharpe(meanOfMeans, meanOfStds float64) float64 {
	if meanOfStds == 0 || math.IsNaN(meanOfStds) || math.IsNaN(meanOfMeans) {
		return math.NaN()
	}
	return meanOfMeans / meanOfStds * math.Sqrt(TradingDaysPerYear)
}
