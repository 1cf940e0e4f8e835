package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wavetrader/internal/jobs"
	"wavetrader/internal/models"
	"wavetrader/internal/store"
)

// importBatchSize bounds one INSERT transaction during imports.
const importBatchSize = 500

func newImportCmd(app *App) *cobra.Command {
	var (
		symbol    string
		timeframe string
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import OHLCV bars from a CSV file",
		Long: `Parses a CSV export (MT5 and ISO timestamp formats), drops malformed
rows and stores the bars for later analysis and backtesting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			tf, err := parseTimeframe(timeframe)
			if err != nil {
				return err
			}

			result, err := store.ImportCSV(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			saved := 0
			batcher := jobs.NewBatchProcessor(importBatchSize, func(batch []models.Bar) error {
				if err := app.Store.SaveBars(ctx, symbol, tf, batch); err != nil {
					return err
				}
				saved += len(batch)
				return nil
			})
			for _, bar := range result.Bars {
				if err := batcher.Add(bar); err != nil {
					return err
				}
			}
			if err := batcher.Flush(); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int{"imported": saved, "dropped": result.Dropped})
			}

			color.Cyan("📥 Import - %s (%s)", symbol, tf)
			output.Success("✓ Imported %d bars", saved)
			if result.Dropped > 0 {
				output.Warning("⚠ Dropped %d malformed rows", result.Dropped)
			}
			output.Dim("Range: %s to %s",
				result.Bars[0].Timestamp.Format("2006-01-02 15:04"),
				result.Bars[len(result.Bars)-1].Timestamp.Format("2006-01-02 15:04"))
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol to file the bars under")
	cmd.Flags().StringVar(&timeframe, "timeframe", "H1", "bar timeframe (M1, M5, M15, H1, H4, D1)")
	cmd.MarkFlagRequired("symbol")
	return cmd
}

func newBarsCmd(app *App) *cobra.Command {
	var (
		symbol    string
		timeframe string
		from      string
		to        string
		tail      int
	)

	cmd := &cobra.Command{
		Use:   "bars",
		Short: "Show stored bars and data freshness",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				return fmt.Errorf("store unavailable")
			}

			tf, err := parseTimeframe(timeframe)
			if err != nil {
				return err
			}

			freshness, err := app.Store.BarsFreshness(cmd.Context(), symbol, tf)
			if err != nil {
				return err
			}

			source, err := loadBars(cmd.Context(), app.Store, "", symbol, timeframe, from, to)
			if err != nil {
				return err
			}

			bars := source.Bars
			if tail > 0 && len(bars) > tail {
				bars = bars[len(bars)-tail:]
			}

			if output.IsJSON() {
				return output.JSON(map[string]any{"freshness": freshness, "bars": bars})
			}

			color.Cyan("🗄  Bars - %s (%s)", symbol, tf)
			output.Dim("Latest bar: %s (%s ago)", freshness.Format("2006-01-02 15:04"), formatDuration(time.Since(freshness)))

			table := NewTable(output, "Time", "Open", "High", "Low", "Close", "Volume")
			for _, b := range bars {
				table.AddRow(
					b.Timestamp.Format("2006-01-02 15:04"),
					fmt.Sprintf("%.5f", b.Open),
					fmt.Sprintf("%.5f", b.High),
					fmt.Sprintf("%.5f", b.Low),
					fmt.Sprintf("%.5f", b.Close),
					fmt.Sprintf("%d", b.Volume),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "symbol")
	cmd.Flags().StringVar(&timeframe, "timeframe", "H1", "bar timeframe")
	cmd.Flags().StringVar(&from, "from", "", "start of range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end of range (YYYY-MM-DD)")
	cmd.Flags().IntVar(&tail, "tail", 20, "show only the last N bars (0 for all)")
	cmd.MarkFlagRequired("symbol")
	return cmd
}
