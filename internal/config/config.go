// Package config handles loading and validating tradesim configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"tradesim/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for tradesim.
type Config struct {
	App        AppConfig          `yaml:"app"`
	Simulation SimulationSettings `yaml:"simulation"`
	API        APIConfig          `yaml:"api"`
	Export     ExportConfig       `yaml:"export"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env      string `yaml:"env" validate:"required,oneof=dev staging prod"`
	LogLevel string `yaml:"logLevel" validate:"required,oneof=debug info warn error"`
	LogFile  string `yaml:"logFile"`
}

// SimulationSettings are the user-facing run parameters. Rates are whole
// percents, as entered on the input sliders.
type SimulationSettings struct {
	Contracts        int     `yaml:"contracts" json:"contracts" validate:"oneof=1 2 3 4"`
	MinTicksProfit   int     `yaml:"minTicksProfit" json:"minTicksProfit" validate:"gte=1,lte=10"`
	MaxTicksProfit   int     `yaml:"maxTicksProfit" json:"maxTicksProfit" validate:"gte=1,lte=10"`
	TicksLoss        int     `yaml:"ticksLoss" json:"ticksLoss" validate:"gte=1,lte=10"`
	TickValue        float64 `yaml:"tickValue" json:"tickValue" validate:"gt=0"`
	FeePerContract   float64 `yaml:"feePerContract" json:"feePerContract" validate:"gt=0"`
	NumTrades        int     `yaml:"numTrades" json:"numTrades" validate:"gte=1,lte=2000"`
	BreakevenPercent float64 `yaml:"breakevenPercent" json:"breakevenPercent" validate:"gte=0,lte=100"`
	WinPercent       float64 `yaml:"winPercent" json:"winPercent" validate:"gte=0,lte=100"`
	NumVariations    int     `yaml:"numVariations" json:"numVariations" validate:"gte=1,lte=50"`

	// Seed fixes the random stream; 0 means a time-based seed per run.
	Seed     int64 `yaml:"seed" json:"seed"`
	Parallel bool  `yaml:"parallel" json:"parallel"`
	Workers  int   `yaml:"workers" json:"workers" validate:"gte=0"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	ListenAddress string `yaml:"listenAddress" validate:"required"`
}

// ExportConfig controls where table exports are written by the CLI.
type ExportConfig struct {
	Directory string `yaml:"directory"`
	CSVFile   string `yaml:"csvFile"`
	XLSXFile  string `yaml:"xlsxFile"`
}

// Params converts the settings into the engine's immutable run config.
func (s SimulationSettings) Params() model.SimulationConfig {
	return model.SimulationConfig{
		Contracts:      s.Contracts,
		MinTicksProfit: s.MinTicksProfit,
		MaxTicksProfit: s.MaxTicksProfit,
		TicksLoss:      s.TicksLoss,
		TickValue:      s.TickValue,
		FeePerContract: s.FeePerContract,
		NumTrades:      s.NumTrades,
		BreakevenRate:  s.BreakevenPercent / 100,
		WinRate:        s.WinPercent / 100,
		NumVariations:  s.NumVariations,
	}
}

// DefaultSimulation returns the stock run parameters.
func DefaultSimulation() SimulationSettings {
	return SimulationSettings{
		Contracts:        1,
		MinTicksProfit:   3,
		MaxTicksProfit:   7,
		TicksLoss:        5,
		TickValue:        12.5,
		FeePerContract:   2.5,
		NumTrades:        200,
		BreakevenPercent: 10,
		WinPercent:       60,
		NumVariations:    10,
	}
}

// Default returns a complete configuration with every default applied.
func Default() *Config {
	cfg := &Config{Simulation: DefaultSimulation()}
	cfg.setDefaults()
	return cfg
}

// Load reads and parses a YAML configuration file. Fields missing from the
// file keep their defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field ranges. The min/max profit tick ordering is left to
// engine.Validate, which reports it as a configuration error of the run.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateSettings checks a standalone set of run parameters.
func ValidateSettings(s SimulationSettings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid simulation settings: %w", err)
	}
	return nil
}

// setDefaults applies sensible defaults for optional fields.
func (c *Config) setDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.API.ListenAddress == "" {
		c.API.ListenAddress = ":8080"
	}
	if c.Export.Directory == "" {
		c.Export.Directory = "."
	}
	if c.Export.CSVFile == "" {
		c.Export.CSVFile = "simulation_results.csv"
	}
	if c.Export.XLSXFile == "" {
		c.Export.XLSXFile = "simulation_results.xlsx"
	}
}

// applyEnv overrides selected fields from TRADESIM_* variables.
func (c *Config) applyEnv() error {
	if v := os.Getenv("TRADESIM_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("TRADESIM_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("TRADESIM_LOG_FILE"); v != "" {
		c.App.LogFile = v
	}
	if v := os.Getenv("TRADESIM_LISTEN_ADDRESS"); v != "" {
		c.API.ListenAddress = v
	}
	if v := os.Getenv("TRADESIM_EXPORT_DIR"); v != "" {
		c.Export.Directory = v
	}
	if v := os.Getenv("TRADESIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing TRADESIM_SEED %q: %w", v, err)
		}
		c.Simulation.Seed = seed
	}
	if v := os.Getenv("TRADESIM_PARALLEL"); v != "" {
		parallel, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing TRADESIM_PARALLEL %q: %w", v, err)
		}
		c.Simulation.Parallel = parallel
	}
	return nil
}
