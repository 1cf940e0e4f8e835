package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesTemplateAndUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	assert.NoError(t, statErr)

	assert.Equal(t, "swing", cfg.Backtest.Strategy)
	assert.Equal(t, 10000.0, cfg.Backtest.InitialBalance)
	assert.Equal(t, "genetic_algorithm", cfg.Optimizer.Method)
	assert.Equal(t, "sharpe_ratio", cfg.Optimizer.Objective)
	assert.Equal(t, 20, cfg.Optimizer.Generations)
	assert.Equal(t, filepath.Join(dir, "wavetrader.db"), cfg.Database.Path)
	// Price distance, not a bar count: fractional default on FX scale.
	assert.Equal(t, 0.001, cfg.Analysis.MinSwingDistance)
}

func TestLoadFractionalSwingDistance(t *testing.T) {
	dir := t.TempDir()
	content := `[analysis]
min_swing_distance = 0.0005
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 0.0005, cfg.Analysis.MinSwingDistance)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `[backtest]
strategy = "scalping"
initial_balance = 25000.0

[optimizer]
method = "random_search"
seed = 7
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "scalping", cfg.Backtest.Strategy)
	assert.Equal(t, 25000.0, cfg.Backtest.InitialBalance)
	assert.Equal(t, "random_search", cfg.Optimizer.Method)
	assert.Equal(t, int64(7), cfg.Optimizer.Seed)
	// Unset sections keep their defaults.
	assert.Equal(t, 0.02, cfg.Backtest.RiskPerTrade)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	content := `[backtest]
strategy = "martingale"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WAVETRADER_DB_PATH", "/tmp/override.db")
	t.Setenv("WAVETRADER_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
}
