package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  logLevel: debug
simulation:
  contracts: 2
  breakevenPercent: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.API.ListenAddress)
	assert.Equal(t, 2, cfg.Simulation.Contracts)
	assert.Equal(t, 0.0, cfg.Simulation.BreakevenPercent, "explicit zero must survive defaults")
	assert.Equal(t, 60.0, cfg.Simulation.WinPercent)
	assert.Equal(t, 200, cfg.Simulation.NumTrades)
	assert.Equal(t, "simulation_results.csv", cfg.Export.CSVFile)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "app: [unterminated")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config YAML")
}

func TestLoad_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"contracts", "simulation:\n  contracts: 5\n"},
		{"trades", "simulation:\n  numTrades: 5000\n"},
		{"variations", "simulation:\n  numVariations: 0\n"},
		{"win percent", "simulation:\n  winPercent: 120\n"},
		{"tick value", "simulation:\n  tickValue: -1\n"},
		{"log level", "app:\n  logLevel: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRADESIM_SEED", "42")
	t.Setenv("TRADESIM_PARALLEL", "true")
	t.Setenv("TRADESIM_LISTEN_ADDRESS", "127.0.0.1:9999")

	cfg, err := Load(writeConfig(t, "app:\n  env: prod\n"))
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.True(t, cfg.Simulation.Parallel)
	assert.Equal(t, "127.0.0.1:9999", cfg.API.ListenAddress)
	assert.Equal(t, "prod", cfg.App.Env)
}

func TestLoad_BadEnvSeed(t *testing.T) {
	t.Setenv("TRADESIM_SEED", "abc")
	_, err := Load(writeConfig(t, "app:\n  env: dev\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRADESIM_SEED")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TRADESIM_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TRADESIM_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("TRADESIM_TEST_DOTENV"))
}

func TestSimulationSettings_Params(t *testing.T) {
	p := DefaultSimulation().Params()

	assert.Equal(t, 1, p.Contracts)
	assert.InDelta(t, 0.10, p.BreakevenRate, 1e-12)
	assert.InDelta(t, 0.60, p.WinRate, 1e-12)
	assert.InDelta(t, 0.54, p.AdjustedWinRate(), 1e-12)
	assert.InDelta(t, 0.36, p.LossRate(), 1e-12)
	assert.Equal(t, 5.0, p.RoundTripFee())
}

func TestValidateSettings(t *testing.T) {
	s := DefaultSimulation()
	require.NoError(t, ValidateSettings(s))

	s.MinTicksProfit = 0
	assert.Error(t, ValidateSettings(s))
}

func TestDefaultConfigFileIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.Export.Directory)
	assert.Equal(t, 10, cfg.Simulation.NumVariations)
}
