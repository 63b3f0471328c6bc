package engine

import "tradesim/internal/model"

// GenerateTrade draws one trade outcome.
//
// The uniform draw u is classified against cumulative thresholds in order:
// u <= breakeven is a breakeven, u <= breakeven+adjustedWin is a win, the
// rest are losses. When the two rates sum above 1 the win branch absorbs the
// remaining mass; the thresholds are not renormalised.
func GenerateTrade(cfg model.SimulationConfig, rng Rand) model.TradeOutcome {
	contracts := float64(cfg.Contracts)
	fee := cfg.RoundTripFee()

	u := rng.Float64()
	switch {
	case u <= cfg.BreakevenRate:
		return model.TradeOutcome{
			Outcome:     model.OutcomeBreakeven,
			ProfitDelta: -fee,
			Ticks:       0,
		}
	case u <= cfg.BreakevenRate+cfg.AdjustedWinRate():
		// closed interval [min, max]
		ticks := cfg.MinTicksProfit + rng.Intn(cfg.MaxTicksProfit-cfg.MinTicksProfit+1)
		return model.TradeOutcome{
			Outcome:     model.OutcomeWin,
			ProfitDelta: float64(ticks)*cfg.TickValue*contracts - fee,
			Ticks:       ticks,
		}
	default:
		return model.TradeOutcome{
			Outcome:     model.OutcomeLoss,
			ProfitDelta: -float64(cfg.TicksLoss)*cfg.TickValue*contracts - fee,
			Ticks:       -cfg.TicksLoss,
		}
	}
}
