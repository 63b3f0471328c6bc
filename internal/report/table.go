package report

import (
	"errors"
	"fmt"
	"strconv"

	"tradesim/internal/engine"
	"tradesim/internal/model"
)

// ErrRaggedTable is returned when variations disagree in length.
var ErrRaggedTable = errors.New("variation sequences differ in length")

// Table is the presentation form of a result: two string columns per
// variation, one row per trade index.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// BuildTable formats the given variations (all when ids is empty) as
// alternating "Variation N" profit and "Ticks N" columns.
func BuildTable(result *model.SimulationResult, ids []int) (Table, error) {
	runs, err := pick(result, ids)
	if err != nil {
		return Table{}, err
	}

	n := len(runs[0].Cumulative)
	headers := make([]string, 0, len(runs)*2)
	for _, run := range runs {
		if len(run.Cumulative) != n || len(run.Ticks) != n {
			return Table{}, fmt.Errorf("%w: variation %d", ErrRaggedTable, run.ID)
		}
		headers = append(headers,
			fmt.Sprintf("Variation %d", run.ID),
			fmt.Sprintf("Ticks %d", run.ID),
		)
	}

	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, 0, len(headers))
		for _, run := range runs {
			row = append(row, FormatCurrency(run.Cumulative[i]), strconv.Itoa(run.Ticks[i]))
		}
		rows[i] = row
	}

	return Table{Headers: headers, Rows: rows}, nil
}

// pick resolves ids to runs in the requested order.
func pick(result *model.SimulationResult, ids []int) ([]model.VariationRun, error) {
	if result == nil || len(result.Variations) == 0 {
		return nil, engine.ErrEmptyResult
	}
	if len(ids) == 0 {
		ids = result.IDs()
	}
	runs := make([]model.VariationRun, 0, len(ids))
	for _, id := range ids {
		run, ok := result.Variation(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d", engine.ErrUnknownVariation, id)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Series is one equity curve for an external chart.
type Series struct {
	Label  string    `json:"label"`
	Points []float64 `json:"points"`
}

// ChartSeries returns the cumulative-profit curves of the given variations.
func ChartSeries(result *model.SimulationResult, ids []int) ([]Series, error) {
	runs, err := pick(result, ids)
	if err != nil {
		return nil, err
	}
	out := make([]Series, len(runs))
	for i, run := range runs {
		pts := make([]float64, len(run.Cumulative))
		copy(pts, run.Cumulative)
		out[i] = Series{Label: fmt.Sprintf("Variation %d", run.ID), Points: pts}
	}
	return out, nil
}
