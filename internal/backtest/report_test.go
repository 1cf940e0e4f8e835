package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavetrader/internal/models"
)

func tradeWithPnL(pnl float64, reason models.ExitReason) models.Trade {
	return models.Trade{
		Side:       models.SideLong,
		EntryTime:  time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		ExitTime:   time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
		EntryPrice: 100,
		ExitPrice:  100 + pnl,
		Quantity:   1,
		PnL:        pnl,
		Reason:     reason,
	}
}

func equityAt(values ...float64) []models.EquityPoint {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	points := make([]models.EquityPoint, len(values))
	for i, v := range values {
		points[i] = models.EquityPoint{
			Timestamp:   start.Add(time.Duration(i) * time.Hour),
			Balance:     v,
			TotalEquity: v,
		}
	}
	return points
}

func TestAnalyzeEmptyTrades(t *testing.T) {
	report := Analyze(nil, nil, 10000)

	assert.Equal(t, 0, report.TotalTrades)
	assert.Equal(t, 10000.0, report.FinalBalance)
	assert.Nil(t, report.ProfitFactor)
	assert.Nil(t, report.SharpeRatio)
}

func TestAnalyzeBasicStats(t *testing.T) {
	trades := []models.Trade{
		tradeWithPnL(100, models.ExitTarget),
		tradeWithPnL(50, models.ExitTarget),
		tradeWithPnL(-60, models.ExitStop),
		tradeWithPnL(-40, models.ExitStop),
	}

	report := Analyze(trades, equityAt(10000, 10100, 10150, 10090, 10050), 10000)

	assert.Equal(t, 4, report.TotalTrades)
	assert.Equal(t, 2, report.WinningTrades)
	assert.Equal(t, 2, report.LosingTrades)
	assert.Equal(t, 0.5, report.WinRate)
	assert.InDelta(t, 50.0, report.TotalProfit, 1e-9)
	assert.InDelta(t, 10050.0, report.FinalBalance, 1e-9)
	assert.InDelta(t, 0.5, report.ReturnPercentage, 1e-9)
	assert.InDelta(t, 75.0, report.AvgProfit, 1e-9)
	assert.InDelta(t, -50.0, report.AvgLoss, 1e-9)

	require.NotNil(t, report.ProfitFactor)
	assert.InDelta(t, 1.5, *report.ProfitFactor, 1e-9)

	assert.Equal(t, 2, report.ExitsByCause[models.ExitTarget])
	assert.Equal(t, 2, report.ExitsByCause[models.ExitStop])
}

func TestAnalyzeBreakevenTrades(t *testing.T) {
	trades := []models.Trade{
		tradeWithPnL(100, models.ExitTarget),
		tradeWithPnL(0, models.ExitTimeLimit),
	}

	report := Analyze(trades, equityAt(10000, 10100, 10100), 10000)

	// A flat trade is neither a win nor a loss, so the profit factor
	// stays undefined.
	assert.Equal(t, 2, report.TotalTrades)
	assert.Equal(t, 1, report.WinningTrades)
	assert.Equal(t, 0, report.LosingTrades)
	assert.Equal(t, 1, report.BreakevenTrades)
	assert.Nil(t, report.ProfitFactor)
	assert.Equal(t, 0.5, report.WinRate)
}

func TestAnalyzeProfitFactorNilWithoutLosses(t *testing.T) {
	trades := []models.Trade{
		tradeWithPnL(100, models.ExitTarget),
		tradeWithPnL(25, models.ExitTarget),
	}

	report := Analyze(trades, equityAt(10000, 10100, 10125), 10000)
	assert.Nil(t, report.ProfitFactor)
	assert.Equal(t, 1.0, report.WinRate)
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name    string
		equity  []models.EquityPoint
		initial float64
		want    float64
	}{
		{
			name:    "no drawdown",
			equity:  equityAt(10000, 10100, 10200),
			initial: 10000,
			want:    0,
		},
		{
			name:    "single dip",
			equity:  equityAt(10000, 11000, 9900, 10500),
			initial: 10000,
			want:    10, // 1100 off an 11000 peak
		},
		{
			name:    "dip below starting balance before any peak",
			equity:  equityAt(9500, 9800),
			initial: 10000,
			want:    5,
		},
		{
			name:    "empty curve",
			equity:  nil,
			initial: 10000,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, maxDrawdown(tt.equity, tt.initial), 1e-9)
		})
	}
}

func TestSharpeRatio(t *testing.T) {
	t.Run("nil for short curve", func(t *testing.T) {
		assert.Nil(t, sharpeRatio(equityAt(10000)))
	})

	t.Run("nil for constant equity", func(t *testing.T) {
		assert.Nil(t, sharpeRatio(equityAt(10000, 10000, 10000)))
	})

	t.Run("positive for steady gains with variance", func(t *testing.T) {
		sharpe := sharpeRatio(equityAt(10000, 10100, 10150, 10300))
		require.NotNil(t, sharpe)
		assert.Greater(t, *sharpe, 0.0)
	})

	t.Run("negative for steady losses with variance", func(t *testing.T) {
		sharpe := sharpeRatio(equityAt(10000, 9900, 9850, 9700))
		require.NotNil(t, sharpe)
		assert.Less(t, *sharpe, 0.0)
	})
}
