package backtest

import (
	"math"

	"wavetrader/internal/models"
)

// Report summarizes a completed run. ProfitFactor is nil when there
// are no losing trades; SharpeRatio is nil when the equity curve is
// too short or has zero return variance.
type Report struct {
	InitialBalance   float64
	FinalBalance     float64
	TotalProfit      float64
	ReturnPercentage float64

	TotalTrades     int
	WinningTrades   int
	LosingTrades    int
	BreakevenTrades int
	WinRate         float64

	AvgProfit    float64
	AvgLoss      float64
	ProfitFactor *float64

	MaxDrawdown  float64 // percent of peak equity
	SharpeRatio  *float64
	ExitsByCause map[models.ExitReason]int
}

// Analyze derives the report metrics from trades and the equity curve.
func Analyze(trades []models.Trade, equity []models.EquityPoint, initialBalance float64) Report {
	report := Report{
		InitialBalance: initialBalance,
		FinalBalance:   initialBalance,
		ExitsByCause:   make(map[models.ExitReason]int),
	}
	if len(trades) == 0 {
		return report
	}

	var totalProfit, grossProfit, grossLoss float64
	wins, losses := 0, 0

	for _, t := range trades {
		totalProfit += t.PnL
		report.ExitsByCause[t.Reason]++
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			losses++
			grossLoss += t.PnL
		}
	}

	report.TotalTrades = len(trades)
	report.WinningTrades = wins
	report.LosingTrades = losses
	report.BreakevenTrades = len(trades) - wins - losses
	report.WinRate = float64(wins) / float64(len(trades))

	if wins > 0 {
		report.AvgProfit = grossProfit / float64(wins)
	}
	if losses > 0 {
		report.AvgLoss = grossLoss / float64(losses)
		pf := math.Abs(grossProfit / grossLoss)
		report.ProfitFactor = &pf
	}

	report.TotalProfit = totalProfit
	report.FinalBalance = initialBalance + totalProfit
	report.ReturnPercentage = totalProfit / initialBalance * 100
	report.MaxDrawdown = maxDrawdown(equity, initialBalance)
	report.SharpeRatio = sharpeRatio(equity)

	return report
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// percentage of the peak. The peak starts at the initial balance.
func maxDrawdown(equity []models.EquityPoint, initialBalance float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := initialBalance
	maxDD := 0.0

	for _, point := range equity {
		if point.TotalEquity > peak {
			peak = point.TotalEquity
		}
		if dd := (peak - point.TotalEquity) / peak; dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD * 100
}

// sharpeRatio annualizes the per-bar equity returns with sqrt(252).
func sharpeRatio(equity []models.EquityPoint) *float64 {
	if len(equity) < 2 {
		return nil
	}

	var returns []float64
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].TotalEquity
		if prev > 0 {
			returns = append(returns, (equity[i].TotalEquity-prev)/prev)
		}
	}
	if len(returns) == 0 {
		return nil
	}

	mean := meanOf(returns)
	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(returns)))
	if std == 0 {
		return nil
	}

	sharpe := mean / std * math.Sqrt(252)
	return &sharpe
}
