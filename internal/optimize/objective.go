package optimize

import (
	"wavetrader/internal/backtest"
	"wavetrader/internal/errors"
)

// Objective names accepted by the optimizer. All objectives follow a
// uniform maximize convention; drawdown is negated internally.
const (
	ObjectiveSharpeRatio  = "sharpe_ratio"
	ObjectiveTotalProfit  = "total_profit"
	ObjectiveWinRate      = "win_rate"
	ObjectiveProfitFactor = "profit_factor"
	ObjectiveMaxDrawdown  = "max_drawdown"
)

// ObjectiveFunc extracts the score to maximize from a finished run.
type ObjectiveFunc func(report backtest.Report) float64

// ObjectiveFor resolves an objective name. Undefined metrics (no
// losing trades, flat equity) score zero so the search can continue.
func ObjectiveFor(name string) (ObjectiveFunc, error) {
	switch name {
	case ObjectiveSharpeRatio:
		return func(r backtest.Report) float64 {
			if r.SharpeRatio == nil {
				return 0
			}
			return *r.SharpeRatio
		}, nil
	case ObjectiveTotalProfit:
		return func(r backtest.Report) float64 { return r.TotalProfit }, nil
	case ObjectiveWinRate:
		return func(r backtest.Report) float64 { return r.WinRate }, nil
	case ObjectiveProfitFactor:
		return func(r backtest.Report) float64 {
			if r.ProfitFactor == nil {
				return 0
			}
			return *r.ProfitFactor
		}, nil
	case ObjectiveMaxDrawdown:
		return func(r backtest.Report) float64 { return -r.MaxDrawdown }, nil
	}
	return nil, errors.Wrap(errors.ErrUnknownObjective, name)
}
