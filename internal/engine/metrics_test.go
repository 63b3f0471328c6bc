package engine

import (
	"math"
	"testing"

	"tradesim/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFromDeltas(id int, deltas ...float64) model.VariationRun {
	run := model.VariationRun{ID: id}
	cum := 0.0
	for _, d := range deltas {
		cum += d
		run.Trades = append(run.Trades, model.TradeOutcome{ProfitDelta: d})
		run.Cumulative = append(run.Cumulative, cum)
		run.Ticks = append(run.Ticks, 0)
	}
	return run
}

func twoVariationResult() *model.SimulationResult {
	return &model.SimulationResult{
		Variations: []model.VariationRun{
			runFromDeltas(1, 10, -5, 15), // 10, 5, 20
			runFromDeltas(2, 0, -8, 6),   // 0, -8, -2
		},
	}
}

func TestComputeMetrics_AllVariations(t *testing.T) {
	m, err := ComputeMetrics(twoVariationResult(), []int{1, 2})
	require.NoError(t, err)

	assert.InDelta(t, 9.0, m.AverageFinalProfit, 1e-12)
	assert.InDelta(t, 8.0, m.MaxDrawdown, 1e-12)

	// means 20/3 and -2/3; sample variances 325/3 and 148/3
	meanOfMeans := (20.0/3 + -2.0/3) / 2
	meanOfStds := (math.Sqrt(325.0/3) + math.Sqrt(148.0/3)) / 2
	assert.InDelta(t, meanOfMeans/meanOfStds*math.Sqrt(252), m.SharpeRatio, 1e-9)
}

func TestComputeMetrics_SubsetIgnoresOthers(t *testing.T) {
	result := twoVariationResult()

	first, err := ComputeMetrics(result, []int{1})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, first.AverageFinalProfit, 1e-12)
	assert.InDelta(t, 5.0, first.MaxDrawdown, 1e-12)

	second, err := ComputeMetrics(result, []int{2})
	require.NoError(t, err)
	assert.InDelta(t, -2.0, second.AverageFinalProfit, 1e-12)
	assert.InDelta(t, 8.0, second.MaxDrawdown, 1e-12)
}

func TestComputeMetrics_DrawdownPeakStartsAtFirstPoint(t *testing.T) {
	// Curve starts below zero and keeps falling: drawdown is measured from
	// the first recorded value, not from an implicit zero.
	result := &model.SimulationResult{Variations: []model.VariationRun{runFromDeltas(1, -10, -5, -5)}}

	m, err := ComputeMetrics(result, []int{1})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, m.MaxDrawdown, 1e-12)
}

func TestComputeMetrics_SingleTradeSharpeIsNaN(t *testing.T) {
	result := &model.SimulationResult{Variations: []model.VariationRun{runFromDeltas(1, 46)}}

	m, err := ComputeMetrics(result, []int{1})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(m.SharpeRatio))
	assert.Equal(t, 46.0, m.AverageFinalProfit)
	assert.Equal(t, 0.0, m.Finite().SharpeRatio)
}

func TestComputeMetrics_IdenticalTradesSharpeIsNaN(t *testing.T) {
	result := &model.SimulationResult{Variations: []model.VariationRun{
		runFromDeltas(1, -5, -5, -5, -5),
		runFromDeltas(2, -5, -5, -5, -5),
	}}

	m, err := ComputeMetrics(result, []int{1, 2})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(m.SharpeRatio))
	assert.InDelta(t, 15.0, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, -20.0, m.AverageFinalProfit, 1e-12)
}

func TestComputeMetrics_FallsBackToCurveDifferences(t *testing.T) {
	result := &model.SimulationResult{Variations: []model.VariationRun{
		{ID: 1, Cumulative: []float64{10, 5, 20}, Ticks: []int{1, -1, 2}},
	}}

	m, err := ComputeMetrics(result, []int{1})
	require.NoError(t, err)
	want := (20.0 / 3) / math.Sqrt(325.0/3) * math.Sqrt(252)
	assert.InDelta(t, want, m.SharpeRatio, 1e-9)
}

func TestComputeMetrics_Preconditions(t *testing.T) {
	result := twoVariationResult()

	_, err := ComputeMetrics(result, nil)
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = ComputeMetrics(result, []int{1, 3})
	assert.ErrorIs(t, err, ErrUnknownVariation)

	_, err = ComputeMetrics(result, []int{0})
	assert.ErrorIs(t, err, ErrUnknownVariation)
}

func TestComputeMetrics_DrawdownNeverNegative(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		cfg := baseConfig()
		cfg.NumTrades = 100
		cfg.NumVariations = 5
		result, err := RunSimulation(cfg, NewSeededRand(seed))
		require.NoError(t, err)

		m, err := ComputeMetrics(result, result.IDs())
		require.NoError(t, err)
		assert.GreaterOrEqual(t, m.MaxDrawdown, 0.0)
		assert.False(t, math.IsNaN(m.AverageFinalProfit))
	}
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, maxDrawdown(nil))
	assert.Equal(t, 0.0, maxDrawdown([]float64{1, 2, 3}))
	assert.Equal(t, 7.0, maxDrawdown([]float64{5, 10, 3, 12, 8}))
}
