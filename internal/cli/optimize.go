package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wavetrader/internal/backtest"
	"wavetrader/internal/logging"
	"wavetrader/internal/optimize"
)

func newOptimizeCmd(app *App) *cobra.Command {
	flags := &analyzeFlags{}
	var (
		strategy    string
		method      string
		objective   string
		generations int
		population  int
		iterations  int
		seed        int64
		balance     float64
		risk        float64
		paramSpecs  []string
		baseParams  []string
		topN        int
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search strategy parameters against an objective",
		Long: `Runs a parameter search over repeated backtests. Each parameter is
declared as name:int:min:max[:step], name:float:min:max[:step] or
name:choice:v1,v2,... Every evaluated candidate is recorded.`,
		Example: `  wavetrader optimize --csv eurusd.csv --strategy swing \
      --param-spec swing_entry_threshold:float:40:80:10 \
      --param-spec rsi_period:int:7:21:7 \
      --method genetic_algorithm --objective sharpe_ratio`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			source, err := loadBars(cmd.Context(), app.Store, flags.csvPath, flags.symbol, flags.timeframe, flags.from, flags.to)
			if err != nil {
				return err
			}

			schema, err := parseSchema(paramSpecs)
			if err != nil {
				return err
			}
			base, err := parseParams(baseParams)
			if err != nil {
				return err
			}

			baseCfg := backtest.Config{
				Strategy:       strategy,
				Params:         base,
				InitialBalance: balance,
				RiskPerTrade:   risk,
				MaxPositions:   app.Config.Backtest.MaxPositions,
			}

			logger := logging.WithStrategy(logging.WithSymbol(app.Logger, source.Symbol), strategy)
			evaluator, err := optimize.NewBacktestEvaluator(source.Bars, baseCfg, objective, logger)
			if err != nil {
				return err
			}

			optimizer, err := optimize.New(optimize.Config{
				Method:         method,
				Objective:      objective,
				Schema:         schema,
				Generations:    generations,
				PopulationSize: population,
				MaxIterations:  iterations,
				Seed:           seed,
			}, evaluator, logger)
			if err != nil {
				return err
			}

			// The history sink needs the job ID, which is assigned on
			// submission. The task blocks until the sink is attached.
			var result *optimize.Result
			ready := make(chan struct{})
			jobID, err := app.Jobs.Submit("optimization", func(ctx context.Context) error {
				<-ready
				var runErr error
				result, runErr = optimizer.Run(ctx)
				return runErr
			})
			if err != nil {
				return err
			}
			if app.Store != nil {
				optimizer.WithSink(app.Store.HistorySink(jobID))
			}
			close(ready)

			job, err := app.Jobs.Wait(cmd.Context(), jobID)
			if err != nil {
				return err
			}
			if job.Error != "" {
				return fmt.Errorf("optimization failed: %s", job.Error)
			}
			if result == nil {
				return fmt.Errorf("optimization produced no result")
			}

			if output.IsJSON() {
				return output.JSON(result)
			}

			color.Cyan("🔍 Optimization - %s (%s, %s)", source.Symbol, method, objective)
			output.Dim("job %s, %d candidates evaluated", jobID, result.Iterations)
			output.Println()

			output.Bold("Best Parameters (score %.4f)", result.BestScore)
			names := make([]string, 0, len(result.BestParameters))
			for name := range result.BestParameters {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				output.Printf("  %-28s %g\n", name, result.BestParameters[name])
			}

			if topN > 0 && len(result.History) > 0 {
				output.Println()
				output.Bold("Top Candidates")
				renderTopCandidates(output, result, topN)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&strategy, "strategy", "", "strategy name (default from config)")
	cmd.Flags().StringVar(&method, "method", "", "search method (default from config)")
	cmd.Flags().StringVar(&objective, "objective", "", "objective metric (default from config)")
	cmd.Flags().IntVar(&generations, "generations", 0, "genetic algorithm generations")
	cmd.Flags().IntVar(&population, "population", 0, "genetic algorithm population size")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "random/bayesian iteration budget")
	cmd.Flags().Int64Var(&seed, "seed", -1, "RNG seed (default from config)")
	cmd.Flags().Float64Var(&balance, "balance", 0, "initial balance (default from config)")
	cmd.Flags().Float64Var(&risk, "risk", 0, "risk per trade (default from config)")
	cmd.Flags().StringArrayVar(&paramSpecs, "param-spec", nil, "tunable parameter declaration (repeatable)")
	cmd.Flags().StringArrayVar(&baseParams, "param", nil, "fixed parameter override (name=value, repeatable)")
	cmd.Flags().IntVar(&topN, "top", 5, "show the N best candidates")
	cmd.MarkFlagRequired("param-spec")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		opt := app.Config.Optimizer
		if strategy == "" {
			strategy = app.Config.Backtest.Strategy
		}
		if method == "" {
			method = opt.Method
		}
		if objective == "" {
			objective = opt.Objective
		}
		if generations == 0 {
			generations = opt.Generations
		}
		if population == 0 {
			population = opt.PopulationSize
		}
		if iterations == 0 {
			iterations = opt.MaxIterations
		}
		if seed < 0 {
			seed = opt.Seed
		}
		if balance == 0 {
			balance = app.Config.Backtest.InitialBalance
		}
		if risk == 0 {
			risk = app.Config.Backtest.RiskPerTrade
		}
	}

	return cmd
}

func renderTopCandidates(output *Output, result *optimize.Result, topN int) {
	ranked := make([]int, len(result.History))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return result.History[ranked[a]].Score > result.History[ranked[b]].Score
	})
	if topN > len(ranked) {
		topN = len(ranked)
	}

	table := NewTable(output, "Rank", "Iter", "Score", "Parameters")
	for rank := 0; rank < topN; rank++ {
		c := result.History[ranked[rank]]

		names := make([]string, 0, len(c.Parameters))
		for name := range c.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		params := ""
		for i, name := range names {
			if i > 0 {
				params += " "
			}
			params += fmt.Sprintf("%s=%g", name, c.Parameters[name])
		}

		table.AddRow(
			fmt.Sprintf("%d", rank+1),
			fmt.Sprintf("%d", c.Iteration),
			fmt.Sprintf("%.4f", c.Score),
			params,
		)
	}
	table.Render()
}
