// Package model defines shared data types used across all tradesim modules.
package model

import (
	"math"
	"time"
)

// Outcome classifies a single simulated trade.
type Outcome string

const (
	OutcomeBreakeven Outcome = "BREAKEVEN" // Closed at entry, fees only
	OutcomeWin       Outcome = "WIN"
	OutcomeLoss      Outcome = "LOSS"
)

// SimulationConfig holds the parameters of one simulation run.
// It is passed by value and never mutated by the engine.
type SimulationConfig struct {
	Contracts      int     `json:"contracts"`
	MinTicksProfit int     `json:"minTicksProfit"`
	MaxTicksProfit int     `json:"maxTicksProfit"`
	TicksLoss      int     `json:"ticksLoss"`
	TickValue      float64 `json:"tickValue"`
	FeePerContract float64 `json:"feePerContract"`
	NumTrades      int     `json:"numTrades"`
	BreakevenRate  float64 `json:"breakevenRate"` // 0..1
	WinRate        float64 `json:"winRate"`       // 0..1, applied to non-breakeven trades
	NumVariations  int     `json:"numVariations"`
}

// AdjustedWinRate is the unconditional probability of a winning trade.
func (c SimulationConfig) AdjustedWinRate() float64 {
	return c.WinRate * (1 - c.BreakevenRate)
}

// LossRate is the residual probability mass. It is negative when the
// breakeven and adjusted win rates together exceed 1.
func (c SimulationConfig) LossRate() float64 {
	return 1 - c.AdjustedWinRate() - c.BreakevenRate
}

// RoundTripFee is the fee charged on every trade (open + close).
func (c SimulationConfig) RoundTripFee() float64 {
	return c.FeePerContract * float64(c.Contracts) * 2
}

// TradeOutcome is the result of one simulated trade.
type TradeOutcome struct {
	Outcome     Outcome `json:"outcome"`
	ProfitDelta float64 `json:"profitDelta"`
	Ticks       int     `json:"ticks"`
}

// VariationRun is one independent equity curve.
type VariationRun struct {
	ID         int            `json:"id"` // 1-based
	Trades     []TradeOutcome `json:"trades"`
	Cumulative []float64      `json:"cumulative"`
	Ticks      []int          `json:"ticks"`
}

// Final returns the last cumulative profit value.
func (v VariationRun) Final() float64 {
	if len(v.Cumulative) == 0 {
		return 0
	}
	return v.Cumulative[len(v.Cumulative)-1]
}

// Deltas returns the per-trade profit series recovered from the cumulative curve.
func (v VariationRun) Deltas() []float64 {
	out := make([]float64, len(v.Cumulative))
	prev := 0.0
	for i, c := range v.Cumulative {
		out[i] = c - prev
		prev = c
	}
	return out
}

// SimulationResult maps variation ids 1..N to their runs.
// Variations[i] holds the run with ID i+1.
type SimulationResult struct {
	Config     SimulationConfig `json:"config"`
	Variations []VariationRun   `json:"variations"`
}

// Variation returns the run with the given 1-based id.
func (r *SimulationResult) Variation(id int) (VariationRun, bool) {
	if id < 1 || id > len(r.Variations) {
		return VariationRun{}, false
	}
	return r.Variations[id-1], true
}

// IDs returns every variation id in order.
func (r *SimulationResult) IDs() []int {
	ids := make([]int, len(r.Variations))
	for i := range r.Variations {
		ids[i] = i + 1
	}
	return ids
}

// RiskMetrics summarises a subset of variations. Sharpe may be NaN.
type RiskMetrics struct {
	AverageFinalProfit float64 `json:"averageFinalProfit"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	SharpeRatio        float64 `json:"sharpeRatio"`
}

// Finite returns a copy with NaN and Inf fields replaced by 0, the value
// shown to users and sent over JSON.
func (m RiskMetrics) Finite() RiskMetrics {
	return RiskMetrics{
		AverageFinalProfit: finiteOrZero(m.AverageFinalProfit),
		MaxDrawdown:        finiteOrZero(m.MaxDrawdown),
		SharpeRatio:        finiteOrZero(m.SharpeRatio),
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// RunSummary is a compact record of one completed simulation run.
type RunSummary struct {
	RunID      string           `json:"runId"`
	Config     SimulationConfig `json:"config"`
	Metrics    RiskMetrics      `json:"metrics"`
	Parallel   bool             `json:"parallel"`
	Seed       int64            `json:"seed"`
	Duration   time.Duration    `json:"duration"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// WSMessage represents a WebSocket message sent to dashboard clients.
type WSMessage struct {
	Type      string    `json:"type"` // run, selection, heartbeat
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// APIResponse is the standard REST API response envelope.
type APIResponse struct {
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
