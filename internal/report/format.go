// Package report turns simulation results into presentation tables,
// summaries and export files.
package report

import (
	"fmt"
	"math"
	"strings"

	"tradesim/internal/model"

	"github.com/shopspring/decimal"
)

// FormatMetric renders a metric with two decimals; NaN and Inf become 0.00.
func FormatMetric(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatCurrency renders an amount as $1,234.50 or -$12.00.
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + "$" + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		sb.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// Summary returns the three display lines shown above the chart.
func Summary(m model.RiskMetrics) []string {
	return []string{
		fmt.Sprintf("Average Cumulative Profits: $%s", FormatMetric(m.AverageFinalProfit)),
		fmt.Sprintf("Maximum Drawdown: $%s", FormatMetric(m.MaxDrawdown)),
		fmt.Sprintf("Sharpe Ratio: %s", FormatMetric(m.SharpeRatio)),
	}
}
