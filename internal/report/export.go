package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"tradesim/internal/engine"
	"tradesim/internal/model"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// WriteCSV writes the table as delimited text: a header row and one row
// per trade index, no index column.
func WriteCSV(w io.Writer, table Table) error {
	out := gocsv.NewSafeCSVWriter(csv.NewWriter(w))
	if err := out.Write(table.Headers); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i, row := range table.Rows {
		if err := out.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	out.Flush()
	return out.Error()
}

// VariationMetricsRow is one line of the per-variation summary export.
type VariationMetricsRow struct {
	Variation   int    `csv:"variation"`
	FinalProfit string `csv:"final_profit"`
	MaxDrawdown string `csv:"max_drawdown"`
	SharpeRatio string `csv:"sharpe_ratio"`
}

// VariationMetrics computes display metrics for each variation on its own.
func VariationMetrics(result *model.SimulationResult, ids []int) ([]VariationMetricsRow, error) {
	runs, err := pick(result, ids)
	if err != nil {
		return nil, err
	}
	rows := make([]VariationMetricsRow, 0, len(runs))
	for _, run := range runs {
		m, err := engine.ComputeMetrics(result, []int{run.ID})
		if err != nil {
			return nil, err
		}
		rows = append(rows, VariationMetricsRow{
			Variation:   run.ID,
			FinalProfit: FormatMetric(m.AverageFinalProfit),
			MaxDrawdown: FormatMetric(m.MaxDrawdown),
			SharpeRatio: FormatMetric(m.SharpeRatio),
		})
	}
	return rows, nil
}

// WriteMetricsCSV writes the per-variation summary.
func WriteMetricsCSV(w io.Writer, rows []VariationMetricsRow) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing metrics csv: %w", err)
	}
	return nil
}

// Sheet names used by WriteXLSX.
const (
	SheetSimulation = "Simulation"
	SheetMetrics    = "Metrics"
)

// WriteXLSX writes a workbook with the numeric table and the metrics
// summary of the selected variations.
func WriteXLSX(w io.Writer, result *model.SimulationResult, ids []int, metrics model.RiskMetrics) error {
	runs, err := pick(result, ids)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSimulation); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]interface{}, 0, len(runs)*2)
	for _, run := range runs {
		header = append(header, fmt.Sprintf("Variation %d", run.ID), fmt.Sprintf("Ticks %d", run.ID))
	}
	if err := f.SetSheetRow(SheetSimulation, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	n := len(runs[0].Cumulative)
	for i := 0; i < n; i++ {
		row := make([]interface{}, 0, len(header))
		for _, run := range runs {
			if i >= len(run.Cumulative) || i >= len(run.Ticks) {
				return fmt.Errorf("%w: variation %d", ErrRaggedTable, run.ID)
			}
			row = append(row, run.Cumulative[i], run.Ticks[i])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSimulation, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	if _, err := f.NewSheet(SheetMetrics); err != nil {
		return fmt.Errorf("creating metrics sheet: %w", err)
	}
	lines := [][]interface{}{
		{"Metric", "Value"},
		{"Average Cumulative Profits", FormatMetric(metrics.AverageFinalProfit)},
		{"Maximum Drawdown", FormatMetric(metrics.MaxDrawdown)},
		{"Sharpe Ratio", FormatMetric(metrics.SharpeRatio)},
	}
	for i := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetMetrics, cell, &lines[i]); err != nil {
			return fmt.Errorf("writing metrics row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
