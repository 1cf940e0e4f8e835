// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Backtest  BacktestConfig  `mapstructure:"backtest"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	UI        UIConfig        `mapstructure:"ui"`
}

// DatabaseConfig holds SQLite storage configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// BacktestConfig holds simulation defaults. Flags override these
// per-run.
type BacktestConfig struct {
	Strategy       string  `mapstructure:"strategy"`
	InitialBalance float64 `mapstructure:"initial_balance"`
	RiskPerTrade   float64 `mapstructure:"risk_per_trade"`
	MaxPositions   int     `mapstructure:"max_positions"`
}

// OptimizerConfig holds parameter-search defaults.
type OptimizerConfig struct {
	Method         string `mapstructure:"method"`
	Objective      string `mapstructure:"objective"`
	Generations    int    `mapstructure:"generations"`
	PopulationSize int    `mapstructure:"population_size"`
	MaxIterations  int    `mapstructure:"max_iterations"`
	Seed           int64  `mapstructure:"seed"`
	Workers        int    `mapstructure:"workers"`
}

// AnalysisConfig holds structure-detection defaults.
type AnalysisConfig struct {
	SwingWindow      int     `mapstructure:"swing_window"`
	MinSwingDistance float64 `mapstructure:"min_swing_distance"`
	ZigzagDeviation  float64 `mapstructure:"zigzag_deviation"`
}

// UIConfig holds terminal output configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
	TimeFormat   string `mapstructure:"time_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/wavetrader"
	}
	return filepath.Join(home, ".config", "wavetrader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run: write a template and continue on defaults.
			if werr := createTemplateConfig(configDir, name); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("database.path", filepath.Join(configDir, "wavetrader.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "wavetrader.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("backtest.strategy", "swing")
	v.SetDefault("backtest.initial_balance", 10000.0)
	v.SetDefault("backtest.risk_per_trade", 0.02)
	v.SetDefault("backtest.max_positions", 1)

	v.SetDefault("optimizer.method", "genetic_algorithm")
	v.SetDefault("optimizer.objective", "sharpe_ratio")
	v.SetDefault("optimizer.generations", 20)
	v.SetDefault("optimizer.population_size", 20)
	v.SetDefault("optimizer.max_iterations", 100)
	v.SetDefault("optimizer.seed", 42)
	v.SetDefault("optimizer.workers", 4)

	v.SetDefault("analysis.swing_window", 5)
	v.SetDefault("analysis.min_swing_distance", 0.001)
	v.SetDefault("analysis.zigzag_deviation", 0.5)

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "02-Jan-2006")
	v.SetDefault("ui.time_format", "15:04:05")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WAVETRADER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("WAVETRADER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Backtest.Strategy {
	case "scalping", "swing", "dow_multi_timeframe":
	default:
		return fmt.Errorf("invalid strategy: %s", c.Backtest.Strategy)
	}

	if c.Backtest.InitialBalance <= 0 {
		return fmt.Errorf("initial_balance must be positive")
	}
	if c.Backtest.RiskPerTrade <= 0 || c.Backtest.RiskPerTrade > 1 {
		return fmt.Errorf("risk_per_trade must be in (0, 1]")
	}
	if c.Backtest.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be at least 1")
	}

	switch c.Optimizer.Method {
	case "genetic_algorithm", "grid_search", "random_search", "bayesian_optimization":
	default:
		return fmt.Errorf("invalid optimizer method: %s", c.Optimizer.Method)
	}

	switch c.Optimizer.Objective {
	case "sharpe_ratio", "total_profit", "win_rate", "profit_factor", "max_drawdown":
	default:
		return fmt.Errorf("invalid objective: %s", c.Optimizer.Objective)
	}

	if c.Optimizer.Generations < 1 || c.Optimizer.PopulationSize < 2 {
		return fmt.Errorf("generations must be >= 1 and population_size >= 2")
	}
	if c.Optimizer.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1")
	}
	if c.Optimizer.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Analysis.SwingWindow < 1 {
		return fmt.Errorf("swing_window must be at least 1")
	}
	if c.Analysis.MinSwingDistance < 0 {
		return fmt.Errorf("min_swing_distance must be >= 0")
	}
	if c.Analysis.ZigzagDeviation <= 0 {
		return fmt.Errorf("zigzag_deviation must be positive")
	}

	return nil
}
