// simulate runs one Monte Carlo simulation from the command line, prints the
// risk summary and writes the table exports.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"tradesim/internal/config"
	"tradesim/internal/engine"
	"tradesim/internal/logging"
	"tradesim/internal/model"
	"tradesim/internal/observability"
	"tradesim/internal/report"
)

func main() {
	configPath := flag.String("config", "", "optional configuration file; built-in defaults when empty")
	contracts := flag.Int("contracts", 0, "contracts per trade (1-4)")
	minTicks := flag.Int("min-ticks", 0, "minimum profit ticks of a win")
	maxTicks := flag.Int("max-ticks", 0, "maximum profit ticks of a win")
	lossTicks := flag.Int("loss-ticks", 0, "ticks lost on a losing trade")
	tickValue := flag.Float64("tick-value", 0, "dollar value of one tick")
	fee := flag.Float64("fee", 0, "fee per contract per side")
	trades := flag.Int("trades", 0, "trades per variation")
	breakeven := flag.Float64("breakeven", 0, "breakeven percent")
	win := flag.Float64("win", 0, "win percent of non-breakeven trades")
	variations := flag.Int("variations", 0, "number of variations")
	seed := flag.Int64("seed", 0, "random seed; 0 picks one from the clock")
	parallel := flag.Bool("parallel", false, "run variations concurrently")
	workers := flag.Int("workers", 0, "parallel worker limit; 0 uses GOMAXPROCS")
	selection := flag.String("select", "", "comma-separated variation ids for the summary, e.g. 1,3")
	outDir := flag.String("out", "", "export directory; overrides the config")
	noExport := flag.Bool("no-export", false, "skip writing CSV and XLSX files")
	logLevel := flag.String("log-level", "", "log level; overrides the config")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fail("loading env file", err)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fail("loading config", err)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config.
	s := &cfg.Simulation
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "contracts":
			s.Contracts = *contracts
		case "min-ticks":
			s.MinTicksProfit = *minTicks
		case "max-ticks":
			s.MaxTicksProfit = *maxTicks
		case "loss-ticks":
			s.TicksLoss = *lossTicks
		case "tick-value":
			s.TickValue = *tickValue
		case "fee":
			s.FeePerContract = *fee
		case "trades":
			s.NumTrades = *trades
		case "breakeven":
			s.BreakevenPercent = *breakeven
		case "win":
			s.WinPercent = *win
		case "variations":
			s.NumVariations = *variations
		case "seed":
			s.Seed = *seed
		case "parallel":
			s.Parallel = *parallel
		case "workers":
			s.Workers = *workers
		case "out":
			cfg.Export.Directory = *outDir
		case "log-level":
			cfg.App.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fail("validating settings", err)
	}

	log, err := logging.Build(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		fail("initializing logger", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cfg, observability.NewMetrics("tradesim"))
	eng.SetLogger(log)

	summary, err := eng.Simulate(ctx, cfg.Simulation)
	if err != nil {
		fail("running simulation", err)
	}

	if *selection != "" {
		ids, err := parseIDs(*selection)
		if err != nil {
			fail("parsing -select", err)
		}
		if err := eng.Select(ids); err != nil {
			fail("selecting variations", err)
		}
	}

	metrics, err := eng.Metrics()
	if err != nil {
		fail("computing metrics", err)
	}

	fmt.Printf("run %s  seed=%d  variations=%d  trades=%d  elapsed=%s\n",
		summary.RunID, summary.Seed, summary.Config.NumVariations, summary.Config.NumTrades, summary.Duration)
	fmt.Printf("selected: %v\n", eng.Store().Selected())
	for _, line := range report.Summary(metrics) {
		fmt.Println(line)
	}

	if *noExport {
		return
	}
	if err := export(eng, cfg.Export, metrics); err != nil {
		fail("exporting", err)
	}
}

// export writes the full table as CSV and XLSX, plus the per-variation
// metrics of the current selection.
func export(eng *engine.Engine, dst config.ExportConfig, metrics model.RiskMetrics) error {
	result, ok := eng.Store().Result()
	if !ok {
		return engine.ErrNoResult
	}
	if err := os.MkdirAll(dst.Directory, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	table, err := report.BuildTable(result, nil)
	if err != nil {
		return err
	}
	csvPath := filepath.Join(dst.Directory, dst.CSVFile)
	if err := writeFile(csvPath, func(f *os.File) error { return report.WriteCSV(f, table) }); err != nil {
		return err
	}

	xlsxPath := filepath.Join(dst.Directory, dst.XLSXFile)
	if err := writeFile(xlsxPath, func(f *os.File) error {
		return report.WriteXLSX(f, result, nil, metrics)
	}); err != nil {
		return err
	}

	rows, err := report.VariationMetrics(result, eng.Store().Selected())
	if err != nil {
		return err
	}
	metricsPath := filepath.Join(dst.Directory, strings.TrimSuffix(dst.CSVFile, filepath.Ext(dst.CSVFile))+"_metrics.csv")
	if err := writeFile(metricsPath, func(f *os.File) error { return report.WriteMetricsCSV(f, rows) }); err != nil {
		return err
	}

	fmt.Printf("wrote %s, %s, %s\n", csvPath, xlsxPath, metricsPath)
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func parseIDs(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("variation id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "[simulate] %s: %v\n", what, err)
	os.Exit(1)
}
