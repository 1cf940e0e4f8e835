package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wavetrader/internal/analysis/elliott"
	"wavetrader/internal/analysis/mtf"
	"wavetrader/internal/analysis/pivots"
	"wavetrader/internal/analysis/scoring"
	"wavetrader/internal/analysis/zigzag"
	"wavetrader/internal/models"
	"wavetrader/pkg/utils"
)

// analyzeFlags are shared by every analyze subcommand.
type analyzeFlags struct {
	csvPath   string
	symbol    string
	timeframe string
	from      string
	to        string
}

func (f *analyzeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.csvPath, "csv", "", "load bars from a CSV file")
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "load bars from the local store")
	cmd.Flags().StringVar(&f.timeframe, "timeframe", "H1", "bar timeframe (M1, M5, M15, H1, H4, D1)")
	cmd.Flags().StringVar(&f.from, "from", "", "start of range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "end of range (YYYY-MM-DD)")
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Chart structure analysis",
		Long:  "Detect swing points, classify trends, filter zigzag pivots, count Elliott waves and score setups.",
	}

	cmd.AddCommand(newSwingsCmd(app))
	cmd.AddCommand(newTrendCmd(app))
	cmd.AddCommand(newZigzagCmd(app))
	cmd.AddCommand(newWavesCmd(app))
	cmd.AddCommand(newMTFCmd(app))
	cmd.AddCommand(newScoreCmd(app))

	return cmd
}

func (app *App) detector() (*pivots.Detector, error) {
	return pivots.NewDetectorWith(app.Config.Analysis.SwingWindow, app.Config.Analysis.MinSwingDistance)
}

func newSwingsCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "swings",
		Short: "Detect confirmed swing highs and lows",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			detector, err := app.detector()
			if err != nil {
				return err
			}
			points := detector.DetectSwingPoints(source.Bars)

			if output.IsJSON() {
				return output.JSON(points)
			}

			color.Cyan("📈 Swing Points - %s (%d bars)", source.Symbol, len(source.Bars))
			if len(points) == 0 {
				output.Warning("No confirmed swing points found")
				return nil
			}

			table := NewTable(output, "#", "Time", "Kind", "Price")
			for i, p := range points {
				kind := output.Green("HIGH")
				if p.Kind == models.PointLow {
					kind = output.Red("LOW")
				}
				table.AddRow(
					fmt.Sprintf("%d", i+1),
					p.Timestamp.Format("2006-01-02 15:04"),
					kind,
					utils.FormatPrice(p.Price),
				)
			}
			table.Render()
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newTrendCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Classify market structure with Dow theory",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			detector, err := app.detector()
			if err != nil {
				return err
			}
			trend := detector.ClassifyTrend(detector.DetectSwingPoints(source.Bars))

			if output.IsJSON() {
				return output.JSON(trend)
			}

			color.Cyan("📊 Trend Analysis - %s", source.Symbol)
			output.Printf("  Trend:        %s\n", output.TrendBadge(trend.Trend))
			output.Printf("  Strength:     %d / 30\n", trend.Strength)
			output.Printf("  Higher Highs: %d   Higher Lows: %d\n", trend.HigherHighs, trend.HigherLows)
			output.Printf("  Lower Highs:  %d   Lower Lows:  %d\n", trend.LowerHighs, trend.LowerLows)
			output.Printf("  Swing Points: %d\n", len(trend.SwingPoints))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newZigzagCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	var deviation float64
	cmd := &cobra.Command{
		Use:   "zigzag",
		Short: "Filter bars into alternating zigzag pivots",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			if deviation == 0 {
				deviation = app.Config.Analysis.ZigzagDeviation
			}
			filter, err := zigzag.NewFilter(deviation / 100)
			if err != nil {
				return err
			}
			points := filter.Compute(source.Bars)

			if output.IsJSON() {
				return output.JSON(points)
			}

			color.Cyan("〽️ Zigzag Pivots - %s (%.2f%% reversal)", source.Symbol, deviation)
			if len(points) == 0 {
				output.Warning("No pivots above the reversal threshold")
				return nil
			}

			table := NewTable(output, "#", "Time", "Kind", "Price", "Move")
			prev := 0.0
			for i, p := range points {
				move := ""
				if i > 0 {
					move = output.FormatPercent((p.Price - prev) / prev * 100)
				}
				kind := output.Green("HIGH")
				if p.Kind == models.PointLow {
					kind = output.Red("LOW")
				}
				table.AddRow(
					fmt.Sprintf("%d", i+1),
					p.Timestamp.Format("2006-01-02 15:04"),
					kind,
					utils.FormatPrice(p.Price),
					move,
				)
				prev = p.Price
			}
			table.Render()
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&deviation, "deviation", 0, "reversal threshold in percent (default from config)")
	return cmd
}

func newWavesCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	var deviation float64
	cmd := &cobra.Command{
		Use:   "waves",
		Short: "Detect Elliott wave patterns on zigzag pivots",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			if deviation == 0 {
				deviation = app.Config.Analysis.ZigzagDeviation
			}
			filter, err := zigzag.NewFilter(deviation / 100)
			if err != nil {
				return err
			}
			classifier := elliott.NewClassifier()
			patterns := classifier.Detect(filter.Compute(source.Bars))

			if output.IsJSON() {
				return output.JSON(patterns)
			}

			color.Cyan("🌊 Elliott Waves - %s", source.Symbol)
			if len(patterns) == 0 {
				output.Warning("No wave patterns detected")
				return nil
			}

			table := NewTable(output, "Wave", "Kind", "Dir", "Start", "End", "Confidence")
			for _, p := range patterns {
				table.AddRow(
					string(p.Label),
					string(p.Kind),
					output.TrendBadge(p.Direction),
					utils.FormatPrice(p.StartPrice),
					utils.FormatPrice(p.EndPrice),
					fmt.Sprintf("%.0f%%", p.Confidence*100),
				)
			}
			table.Render()

			if pos := classifier.CurrentPosition(patterns); pos != nil {
				output.Println()
				output.Bold("Current Position")
				output.Printf("  Wave %s (%s), confidence %.0f%%\n", pos.Label, pos.Kind, pos.Confidence*100)
				if pos.NextTarget != nil {
					output.Printf("  Next target: %s\n", utils.FormatPrice(*pos.NextTarget))
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&deviation, "deviation", 0, "reversal threshold in percent (default from config)")
	return cmd
}

// mtfHigherFrames maps a base timeframe to its slower companions.
func mtfHigherFrames(base models.Timeframe) []models.Timeframe {
	switch base {
	case models.TimeframeM1, models.TimeframeM5:
		return []models.Timeframe{models.TimeframeM15, models.TimeframeH1, models.TimeframeH4}
	case models.TimeframeM15:
		return []models.Timeframe{models.TimeframeH1, models.TimeframeH4, models.TimeframeD1}
	default:
		return []models.Timeframe{models.TimeframeH4, models.TimeframeD1}
	}
}

func newMTFCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "mtf",
		Short: "Multi-timeframe trend confluence",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			base, err := parseTimeframe(flags.timeframe)
			if err != nil {
				return err
			}
			detector, err := app.detector()
			if err != nil {
				return err
			}

			analyzer := mtf.NewAnalyzer(detector)
			views := analyzer.BuildViews(source.Bars, base, mtfHigherFrames(base))
			confluence := mtf.Summarize(views)

			if output.IsJSON() {
				return output.JSON(map[string]any{"views": views, "confluence": confluence})
			}

			color.Cyan("🔭 Multi-Timeframe View - %s", source.Symbol)
			table := NewTable(output, "Timeframe", "Bars", "Trend", "Strength")
			for _, v := range views {
				table.AddRow(
					string(v.Timeframe),
					fmt.Sprintf("%d", len(v.Bars)),
					output.TrendBadge(v.Trend.Trend),
					fmt.Sprintf("%d / 30", v.Trend.Strength),
				)
			}
			table.Render()

			output.Println()
			output.Printf("  Confluence: %s (%d bullish / %d bearish / %d neutral)\n",
				output.TrendBadge(confluence.Trend), confluence.Bullish, confluence.Bearish, confluence.Neutral)
			if confluence.Aligned {
				output.Success("  ✓ Timeframes aligned")
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newScoreCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	var deviation float64
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Composite setup score and trade signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			base, err := parseTimeframe(flags.timeframe)
			if err != nil {
				return err
			}
			detector, err := app.detector()
			if err != nil {
				return err
			}

			if deviation == 0 {
				deviation = app.Config.Analysis.ZigzagDeviation
			}
			filter, err := zigzag.NewFilter(deviation / 100)
			if err != nil {
				return err
			}

			views := mtf.NewAnalyzer(detector).BuildViews(source.Bars, base, mtfHigherFrames(base))
			patterns := elliott.NewClassifier().Detect(filter.Compute(source.Bars))

			signal, err := scoring.NewScorer().Signal(views, patterns)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(signal)
			}

			color.Cyan("🎯 Setup Score - %s", source.Symbol)
			output.Printf("  Trend Strength:     %5.1f / 30\n", signal.Score.TrendStrength)
			output.Printf("  Elliott Wave:       %5.1f / 40\n", signal.Score.ElliottWave)
			output.Printf("  Technical Accuracy: %5.1f / 20\n", signal.Score.TechnicalAccuracy)
			output.Printf("  Market Environment: %5.1f / 10\n", signal.Score.MarketEnvironment)
			output.Bold("  Total:              %5.1f / 100", signal.Score.Total)
			output.Println()

			output.Printf("  Signal: %s", output.SignalBadge(signal.Strength))
			if signal.Actionable() {
				output.Printf("  %s\n", signal.Side)
				output.Printf("  Entry: %s  Stop: %s  Target: %s\n",
					utils.FormatPrice(signal.Entry),
					utils.FormatPrice(signal.StopLoss),
					utils.FormatPrice(signal.TakeProfit))
			} else {
				output.Println()
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().Float64Var(&deviation, "deviation", 0, "reversal threshold in percent (default from config)")
	return cmd
}
