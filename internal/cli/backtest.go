package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wavetrader/internal/backtest"
	"wavetrader/internal/logging"
	"wavetrader/internal/store"
	"wavetrader/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	var (
		strategy     string
		balance      float64
		risk         float64
		maxPositions int
		paramFlags   []string
		save         bool
		showTrades   bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Simulate a strategy over historical bars",
		Long: `Replays a bar series through a strategy, tracks simulated positions
and reports performance metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			params, err := parseParams(paramFlags)
			if err != nil {
				return err
			}

			cfg := backtest.Config{
				Strategy:       strategy,
				Params:         params,
				InitialBalance: balance,
				RiskPerTrade:   risk,
				MaxPositions:   maxPositions,
			}

			logger := logging.WithStrategy(logging.WithSymbol(app.Logger, source.Symbol), strategy)
			engine, err := backtest.NewEngine(cfg, logger)
			if err != nil {
				return err
			}

			started := time.Now()
			result, err := engine.Run(cmd.Context(), source.Bars)
			if err != nil {
				return err
			}
			elapsed := time.Since(started)

			if save && app.Store != nil {
				if err := saveBacktestResult(cmd.Context(), app.Store, source.Symbol, strategy, result); err != nil {
					app.Logger.Warn().Err(err).Msg("Failed to persist backtest result")
				}
			}

			if output.IsJSON() {
				return output.JSON(result.Report)
			}

			color.Cyan("🧪 Backtest - %s (%s)", source.Symbol, strategy)
			output.Dim("%d bars, %d dropped, finished in %s", len(source.Bars), result.DroppedBars+source.Dropped, formatDuration(elapsed))
			output.Println()
			renderReport(output, result.Report)

			if showTrades && len(result.Trades) > 0 {
				output.Println()
				output.Bold("Trades")
				table := NewTable(output, "#", "Side", "Entry", "Exit", "PnL", "Reason")
				for i, tr := range result.Trades {
					table.AddRow(
						fmt.Sprintf("%d", i+1),
						string(tr.Side),
						utils.FormatPrice(tr.EntryPrice),
						utils.FormatPrice(tr.ExitPrice),
						output.FormatPnL(tr.PnL),
						string(tr.Reason),
					)
				}
				table.Render()
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&strategy, "strategy", "", "strategy name (default from config)")
	cmd.Flags().Float64Var(&balance, "balance", 0, "initial balance (default from config)")
	cmd.Flags().Float64Var(&risk, "risk", 0, "risk per trade as a fraction (default from config)")
	cmd.Flags().IntVar(&maxPositions, "max-positions", 0, "max simultaneous positions (default from config)")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "strategy parameter override (name=value, repeatable)")
	cmd.Flags().BoolVar(&save, "save", false, "persist the result summary")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "list individual trades")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if strategy == "" {
			strategy = app.Config.Backtest.Strategy
		}
		if balance == 0 {
			balance = app.Config.Backtest.InitialBalance
		}
		if risk == 0 {
			risk = app.Config.Backtest.RiskPerTrade
		}
		if maxPositions == 0 {
			maxPositions = app.Config.Backtest.MaxPositions
		}
	}

	return cmd
}

func renderReport(output *Output, report backtest.Report) {
	output.Bold("Performance")
	output.Printf("  Initial Balance:  %.2f\n", report.InitialBalance)
	output.Printf("  Final Balance:    %.2f\n", report.FinalBalance)
	output.Printf("  Total Profit:     %s (%s)\n", output.FormatPnL(report.TotalProfit), output.FormatPercent(report.ReturnPercentage))
	output.Println()

	output.Bold("Trades")
	output.Printf("  Total:            %d\n", report.TotalTrades)
	output.Printf("  Winners / Losers: %d / %d\n", report.WinningTrades, report.LosingTrades)
	if report.BreakevenTrades > 0 {
		output.Printf("  Breakeven:        %d\n", report.BreakevenTrades)
	}
	output.Printf("  Win Rate:         %.1f%%\n", report.WinRate*100)
	output.Printf("  Avg Profit:       %s\n", utils.FormatPnL(report.AvgProfit))
	output.Printf("  Avg Loss:         %s\n", utils.FormatPnL(report.AvgLoss))
	output.Printf("  Profit Factor:    %s\n", utils.FormatRatio(report.ProfitFactor))
	output.Println()

	output.Bold("Risk")
	output.Printf("  Max Drawdown:     %.2f%%\n", report.MaxDrawdown)
	output.Printf("  Sharpe Ratio:     %s\n", utils.FormatRatio(report.SharpeRatio))

	if len(report.ExitsByCause) > 0 {
		output.Println()
		output.Bold("Exits")
		for reason, count := range report.ExitsByCause {
			output.Printf("  %-24s %d\n", reason, count)
		}
	}
}

func saveBacktestResult(ctx context.Context, st *store.SQLiteStore, symbol, strategy string, result *backtest.Result) error {
	return st.SaveResult(ctx, store.BacktestRecord{
		Symbol:         symbol,
		Strategy:       strategy,
		InitialBalance: result.Report.InitialBalance,
		FinalBalance:   result.Report.FinalBalance,
		TotalTrades:    result.Report.TotalTrades,
		WinRate:        result.Report.WinRate,
		ProfitFactor:   result.Report.ProfitFactor,
		SharpeRatio:    result.Report.SharpeRatio,
		MaxDrawdown:    result.Report.MaxDrawdown,
	})
}

func newResultsCmd(app *App) *cobra.Command {
	var symbol string
	var limit int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show saved backtest results",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			results, err := app.Store.GetResults(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(results)
			}

			color.Cyan("📋 Saved Results")
			if len(results) == 0 {
				output.Warning("No saved results")
				return nil
			}

			table := NewTable(output, "When", "Symbol", "Strategy", "Trades", "Win%", "PF", "Sharpe", "DD%", "Final")
			for _, r := range results {
				table.AddRow(
					r.CreatedAt.Format("2006-01-02 15:04"),
					r.Symbol,
					r.Strategy,
					fmt.Sprintf("%d", r.TotalTrades),
					fmt.Sprintf("%.1f", r.WinRate*100),
					utils.FormatRatio(r.ProfitFactor),
					utils.FormatRatio(r.SharpeRatio),
					fmt.Sprintf("%.1f", r.MaxDrawdown),
					fmt.Sprintf("%.2f", r.FinalBalance),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows")
	return cmd
}
