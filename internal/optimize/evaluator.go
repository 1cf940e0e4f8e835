package optimize

import (
	"context"

	"github.com/rs/zerolog"

	"wavetrader/internal/backtest"
	"wavetrader/internal/models"
)

// Evaluator scores one candidate parameter set. It returns the
// objective score plus auxiliary metrics for the history record.
type Evaluator func(ctx context.Context, params backtest.Params) (float64, map[string]float64, error)

// NewBacktestEvaluator builds the standard evaluator: merge the
// candidate parameters over the base configuration, run one backtest
// over the shared read-only bar series and extract the objective.
func NewBacktestEvaluator(bars []models.Bar, base backtest.Config, objective string, logger zerolog.Logger) (Evaluator, error) {
	extract, err := ObjectiveFor(objective)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, params backtest.Params) (float64, map[string]float64, error) {
		cfg := base
		merged := make(backtest.Params, len(base.Params)+len(params))
		for k, v := range base.Params {
			merged[k] = v
		}
		for k, v := range params {
			merged[k] = v
		}
		cfg.Params = merged

		engine, err := backtest.NewEngine(cfg, logger)
		if err != nil {
			return 0, nil, err
		}
		result, err := engine.Run(ctx, bars)
		if err != nil {
			return 0, nil, err
		}

		report := result.Report
		metrics := map[string]float64{
			"total_trades":      float64(report.TotalTrades),
			"total_profit":      report.TotalProfit,
			"win_rate":          report.WinRate,
			"max_drawdown":      report.MaxDrawdown,
			"return_percentage": report.ReturnPercentage,
		}
		if report.SharpeRatio != nil {
			metrics["sharpe_ratio"] = *report.SharpeRatio
		}
		if report.ProfitFactor != nil {
			metrics["profit_factor"] = *report.ProfitFactor
		}

		return extract(report), metrics, nil
	}, nil
}
