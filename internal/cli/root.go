package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wavetrader/internal/config"
	"wavetrader/internal/jobs"
	"wavetrader/internal/logging"
	"wavetrader/internal/store"
)

// Version information
const (
	Version = "0.3.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  *store.SQLiteStore
	Jobs   *jobs.Manager
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	dataStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, persistence is unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")
	}

	app.Jobs = jobs.NewManager(cfg.Optimizer.Workers, logger)
	if app.Store != nil {
		app.Jobs = app.Jobs.WithRecorder(app.Store)
	}

	rootCmd := &cobra.Command{
		Use:   "wavetrader",
		Short: "Chart structure analysis and backtesting CLI",
		Long: `Wavetrader analyzes chart structure with Dow theory, zigzag and
Elliott wave tools, backtests rule-based strategies over historical
bars, and tunes strategy parameters with search algorithms.

Use 'wavetrader help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Jobs.Close()
			if app.Store != nil {
				app.Store.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/wavetrader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newOptimizeCmd(app))
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newBarsCmd(app))
	rootCmd.AddCommand(newJobsCmd(app))
	rootCmd.AddCommand(newResultsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("wavetrader v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Database")
	output.Printf("  Path:            %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Backtest Defaults")
	output.Printf("  Strategy:        %s\n", cfg.Backtest.Strategy)
	output.Printf("  Balance:         %.2f\n", cfg.Backtest.InitialBalance)
	output.Printf("  Risk/Trade:      %.1f%%\n", cfg.Backtest.RiskPerTrade*100)
	output.Printf("  Max Positions:   %d\n", cfg.Backtest.MaxPositions)
	output.Println()

	output.Bold("Optimizer Defaults")
	output.Printf("  Method:          %s\n", cfg.Optimizer.Method)
	output.Printf("  Objective:       %s\n", cfg.Optimizer.Objective)
	output.Printf("  Generations:     %d\n", cfg.Optimizer.Generations)
	output.Printf("  Population:      %d\n", cfg.Optimizer.PopulationSize)
	output.Printf("  Max Iterations:  %d\n", cfg.Optimizer.MaxIterations)
	output.Printf("  Seed:            %d\n", cfg.Optimizer.Seed)
	output.Printf("  Workers:         %d\n", cfg.Optimizer.Workers)
	output.Println()

	output.Bold("Analysis Defaults")
	output.Printf("  Swing Window:    %d\n", cfg.Analysis.SwingWindow)
	output.Printf("  Min Distance:    %g\n", cfg.Analysis.MinSwingDistance)
	output.Printf("  Zigzag Dev %%:    %.2f\n", cfg.Analysis.ZigzagDeviation)
}
