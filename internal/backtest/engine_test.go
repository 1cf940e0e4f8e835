package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

func testConfig(strategy string) Config {
	return Config{
		Strategy:       strategy,
		Params:         Params{},
		InitialBalance: 10000,
		RiskPerTrade:   0.02,
		MaxPositions:   3,
	}
}

// barsFromCloses builds hourly bars with a small symmetric range around
// each close.
func barsFromCloses(closes []float64) []models.Bar {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		high := math.Max(open, c) * 1.0002
		low := math.Min(open, c) * 0.9998
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func flatCloses(n int, price float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return closes
}

func TestNewEngineValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero balance", func(c *Config) { c.InitialBalance = 0 }},
		{"negative risk", func(c *Config) { c.RiskPerTrade = -0.1 }},
		{"risk above one", func(c *Config) { c.RiskPerTrade = 1.5 }},
		{"zero positions", func(c *Config) { c.MaxPositions = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(StrategyScalping)
			tt.mutate(&cfg)
			_, err := NewEngine(cfg, zerolog.Nop())
			assert.Error(t, err)
		})
	}
}

func TestNewEngineUnknownStrategy(t *testing.T) {
	cfg := testConfig("martingale")
	_, err := NewEngine(cfg, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownStrategy))
}

func TestRunInsufficientData(t *testing.T) {
	engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), barsFromCloses(flatCloses(3, 100)))
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
}

func TestRunFlatSeriesProducesNoTrades(t *testing.T) {
	engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), barsFromCloses(flatCloses(200, 150)))
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Equal(t, 10000.0, result.FinalBalance)
	for _, p := range result.EquityCurve {
		assert.Equal(t, 10000.0, p.TotalEquity)
	}
}

func TestRunEquityCurveCoversEveryBar(t *testing.T) {
	closes := flatCloses(100, 150)
	engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), barsFromCloses(closes))
	require.NoError(t, err)

	// One equity point per simulated bar, starting at bar 10.
	assert.Len(t, result.EquityCurve, len(closes)-10)
}

func TestRunDropsMalformedBars(t *testing.T) {
	bars := barsFromCloses(flatCloses(60, 150))
	bars[20].High = bars[20].Low - 1 // high below low
	bars[35].Close = -5

	engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DroppedBars)
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
	require.NoError(t, err)

	_, err = engine.Run(ctx, barsFromCloses(flatCloses(60, 150)))
	assert.True(t, errors.Is(err, errors.ErrJobCancelled))
}

func TestRunIsDeterministic(t *testing.T) {
	closes := make([]float64, 300)
	price := 150.0
	for i := range closes {
		// Deterministic pseudo-random walk.
		step := math.Sin(float64(i)*0.7)*0.3 + math.Cos(float64(i)*0.13)*0.2
		price += step
		closes[i] = price
	}
	bars := barsFromCloses(closes)

	run := func() *Result {
		engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
		require.NoError(t, err)
		result, err := engine.Run(context.Background(), bars)
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.FinalBalance, second.FinalBalance)
}

func TestScalpingSignalBuyOnMomentum(t *testing.T) {
	bars := barsFromCloses([]float64{100.00, 100.00, 100.00, 100.06, 100.20})
	ctx := &SignalContext{
		Bars:  bars,
		Index: 4,
		RSI:   math.NaN(),
		MA:    math.NaN(),
		ATR:   math.NaN(),
	}

	sig := ScalpingSignal(ctx, Params{})
	assert.Equal(t, ActionBuy, sig.Action)
	assert.InDelta(t, 100.20*0.9995, sig.StopLoss, 1e-9)
	assert.InDelta(t, 100.20*1.0030, sig.TakeProfit, 1e-9)
}

func TestScalpingSignalSellOnMomentum(t *testing.T) {
	bars := barsFromCloses([]float64{100.20, 100.20, 100.20, 100.14, 100.00})
	ctx := &SignalContext{
		Bars:  bars,
		Index: 4,
		RSI:   math.NaN(),
		MA:    math.NaN(),
		ATR:   math.NaN(),
	}

	sig := ScalpingSignal(ctx, Params{})
	assert.Equal(t, ActionSell, sig.Action)
	assert.Greater(t, sig.StopLoss, 100.00)
	assert.Less(t, sig.TakeProfit, 100.00)
}

func TestScalpingSignalHoldOnFlat(t *testing.T) {
	bars := barsFromCloses(flatCloses(10, 100))
	ctx := &SignalContext{Bars: bars, Index: 9, RSI: math.NaN(), MA: math.NaN(), ATR: math.NaN()}

	sig := ScalpingSignal(ctx, Params{})
	assert.Equal(t, ActionHold, sig.Action)
}

func TestSwingSignalRequiresHistory(t *testing.T) {
	bars := barsFromCloses(flatCloses(20, 100))
	ctx := &SignalContext{Bars: bars, Index: 19, RSI: math.NaN(), MA: math.NaN(), ATR: math.NaN()}

	sig := SwingSignal(ctx, Params{})
	assert.Equal(t, ActionHold, sig.Action)
}

func TestSwingStopPlacement(t *testing.T) {
	lows := []models.SwingPoint{{Price: 99.0, Kind: models.PointLow}}

	t.Run("uses last swing low", func(t *testing.T) {
		stop := swingStop(lows, 100, 0.5, models.SideLong)
		assert.InDelta(t, 99.0*0.998, stop, 1e-9)
	})

	t.Run("falls back to ATR", func(t *testing.T) {
		stop := swingStop(nil, 100, 0.5, models.SideLong)
		assert.InDelta(t, 99.0, stop, 1e-9)
	})

	t.Run("falls back to percent offset", func(t *testing.T) {
		stop := swingStop(nil, 100, math.NaN(), models.SideLong)
		assert.InDelta(t, 99.0, stop, 1e-9)
	})

	t.Run("short side above swing high", func(t *testing.T) {
		highs := []models.SwingPoint{{Price: 101.0, Kind: models.PointHigh}}
		stop := swingStop(highs, 100, 0.5, models.SideShort)
		assert.InDelta(t, 101.0*1.002, stop, 1e-9)
	})
}

func TestMTFConsensusSignalRequiresHistory(t *testing.T) {
	bars := barsFromCloses(flatCloses(60, 100))
	ctx := &SignalContext{Bars: bars, Index: 59, RSI: math.NaN(), MA: math.NaN(), ATR: math.NaN()}

	sig := MTFConsensusSignal(ctx, Params{})
	assert.Equal(t, ActionHold, sig.Action)
}

func TestCloseConditionOrder(t *testing.T) {
	engine, err := NewEngine(testConfig(StrategySwing), zerolog.Nop())
	require.NoError(t, err)

	base := models.Position{
		Side:       models.SideLong,
		EntryTime:  time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		EntryPrice: 100,
		StopLoss:   98,
		TakeProfit: 106,
		MaxHold:    120 * time.Hour,
	}
	sideways := models.TrendAnalysis{Trend: models.TrendSideways}

	t.Run("stop breach", func(t *testing.T) {
		pos := &openPosition{Position: base}
		bar := models.Bar{Timestamp: base.EntryTime.Add(time.Hour), Open: 98, High: 98, Low: 97.5, Close: 97.8}
		reason, hit := engine.closeCondition(pos, bar, sideways)
		require.True(t, hit)
		assert.Equal(t, models.ExitStop, reason)
	})

	t.Run("target breach", func(t *testing.T) {
		pos := &openPosition{Position: base}
		bar := models.Bar{Timestamp: base.EntryTime.Add(time.Hour), Open: 106, High: 106.5, Low: 106, Close: 106.2}
		reason, hit := engine.closeCondition(pos, bar, sideways)
		require.True(t, hit)
		assert.Equal(t, models.ExitTarget, reason)
	})

	t.Run("trailing stop wins over original stop", func(t *testing.T) {
		pos := &openPosition{Position: base}
		pos.TrailingStop = 101

		bar := models.Bar{Timestamp: base.EntryTime.Add(time.Hour), Open: 101, High: 101, Low: 100.5, Close: 100.8}
		reason, hit := engine.closeCondition(pos, bar, sideways)
		require.True(t, hit)
		assert.Equal(t, models.ExitTrailingStop, reason)
	})

	t.Run("time limit", func(t *testing.T) {
		pos := &openPosition{Position: base}
		bar := models.Bar{Timestamp: base.EntryTime.Add(121 * time.Hour), Open: 100, High: 100.5, Low: 99.5, Close: 100}
		reason, hit := engine.closeCondition(pos, bar, sideways)
		require.True(t, hit)
		assert.Equal(t, models.ExitTimeLimit, reason)
	})

	t.Run("trend reversal", func(t *testing.T) {
		pos := &openPosition{Position: base}
		bar := models.Bar{Timestamp: base.EntryTime.Add(time.Hour), Open: 100, High: 100.5, Low: 99.5, Close: 100}
		reason, hit := engine.closeCondition(pos, bar, models.TrendAnalysis{Trend: models.TrendDown})
		require.True(t, hit)
		assert.Equal(t, models.ExitTrendReversal, reason)
	})

	t.Run("no condition holds", func(t *testing.T) {
		pos := &openPosition{Position: base}
		bar := models.Bar{Timestamp: base.EntryTime.Add(time.Hour), Open: 100, High: 100.5, Low: 99.5, Close: 100}
		_, hit := engine.closeCondition(pos, bar, sideways)
		assert.False(t, hit)
	})
}

func TestTrailingStopOnlyTightens(t *testing.T) {
	engine, err := NewEngine(testConfig(StrategySwing), zerolog.Nop())
	require.NoError(t, err)

	pos := &openPosition{Position: models.Position{
		Side:     models.SideLong,
		StopLoss: 98,
	}}

	engine.updateTrailingStop(pos, 100)
	first := pos.TrailingStop
	assert.InDelta(t, 100*0.995, first, 1e-9)

	engine.updateTrailingStop(pos, 99)
	assert.Equal(t, first, pos.TrailingStop)

	engine.updateTrailingStop(pos, 102)
	assert.InDelta(t, 102*0.995, pos.TrailingStop, 1e-9)
}

func TestClosePositionTwiceFails(t *testing.T) {
	engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
	require.NoError(t, err)

	pos := &openPosition{Position: models.Position{
		Side: models.SideLong, EntryPrice: 100, Quantity: 1,
	}}

	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	_, err = engine.closePosition(pos, at, 101, models.ExitTarget)
	require.NoError(t, err)

	_, err = engine.closePosition(pos, at, 101, models.ExitTarget)
	assert.True(t, errors.Is(err, errors.ErrPositionClosed))
}

func TestClosePositionPnL(t *testing.T) {
	engine, err := NewEngine(testConfig(StrategyScalping), zerolog.Nop())
	require.NoError(t, err)

	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	long := &openPosition{Position: models.Position{Side: models.SideLong, EntryPrice: 100, Quantity: 2}}
	trade, err := engine.closePosition(long, at, 103, models.ExitTarget)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, trade.PnL, 1e-9)

	short := &openPosition{Position: models.Position{Side: models.SideShort, EntryPrice: 100, Quantity: 2}}
	trade, err = engine.closePosition(short, at, 103, models.ExitStop)
	require.NoError(t, err)
	assert.InDelta(t, -6.0, trade.PnL, 1e-9)
}

func TestParamsGet(t *testing.T) {
	p := Params{"entry_threshold": 65}
	assert.Equal(t, 65.0, p.Get("entry_threshold", 50))
	assert.Equal(t, 50.0, p.Get("missing", 50))
}
