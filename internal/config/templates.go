package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Wavetrader Configuration

[database]
# SQLite database file for bars, jobs and results
path = ""

[logging]
# Log level: trace, debug, info, warn, error
level = "info"
# Write logs to the console
console = true
# Write logs to a rotating file
file = true
# Uncomment to move logs out of the config directory
# file_path = "/var/log/wavetrader.log"
# Rotation: max file size in MB, backups to keep, max age in days
max_size = 100
max_backups = 7
max_age = 30

[backtest]
# Strategy: scalping, swing, dow_multi_timeframe
strategy = "swing"
# Starting account balance
initial_balance = 10000.0
# Fraction of balance risked per trade
risk_per_trade = 0.02
# Maximum simultaneous open positions
max_positions = 1

[optimizer]
# Method: genetic_algorithm, grid_search, random_search, bayesian_optimization
method = "genetic_algorithm"
# Objective: sharpe_ratio, total_profit, win_rate, profit_factor, max_drawdown
objective = "sharpe_ratio"
generations = 20
population_size = 20
max_iterations = 100
# RNG seed for reproducible searches
seed = 42
# Parallel evaluation workers
workers = 4

[analysis]
# Bars on each side of a swing point
swing_window = 5
# Minimum price distance between consecutive same-kind swings
min_swing_distance = 0.001
# Zigzag reversal threshold in percent
zigzag_deviation = 0.5

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "02-Jan-2006"
# Time format
time_format = "15:04:05"
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
