package backtest

import (
	"math"

	"wavetrader/internal/analysis/indicators"
	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

// Strategy names accepted by the engine and the optimizer.
const (
	StrategyScalping = "scalping"
	StrategySwing    = "swing"
	StrategyMTF      = "dow_multi_timeframe"
)

// Action is a strategy's per-bar decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// StrategySignal is one strategy decision with its exit levels. A zero
// StopLoss or TakeProfit means the strategy left placement to the engine.
type StrategySignal struct {
	Action     Action
	Score      float64
	StopLoss   float64
	TakeProfit float64
}

// SignalContext carries everything a strategy may look at for one bar.
// Bars holds the full history up to and including the current bar;
// indicator values are NaN while their warm-up window is incomplete.
type SignalContext struct {
	Bars  []models.Bar
	Index int
	RSI   float64
	MA    float64
	ATR   float64
	Trend models.TrendAnalysis
}

// SignalFunc evaluates one bar and returns the strategy's decision.
type SignalFunc func(ctx *SignalContext, params Params) StrategySignal

// StrategyFor resolves a strategy name to its signal function.
func StrategyFor(name string) (SignalFunc, error) {
	switch name {
	case StrategyScalping:
		return ScalpingSignal, nil
	case StrategySwing:
		return SwingSignal, nil
	case StrategyMTF:
		return MTFConsensusSignal, nil
	}
	return nil, errors.Wrap(errors.ErrUnknownStrategy, name)
}

// precomputeIndicators calculates the per-bar indicator series once for
// the whole run. Each value at index i uses bars up to i only. Warm-up
// positions stay NaN.
func precomputeIndicators(bars []models.Bar, params Params) (rsi, ma, atr []float64) {
	n := len(bars)
	rsi, ma, atr = nanSlice(n), nanSlice(n), nanSlice(n)

	rsiPeriod := int(params.Get("rsi_period", 14))
	if values, err := indicators.NewRSI(rsiPeriod).Calculate(bars); err == nil {
		for i := rsiPeriod; i < n; i++ {
			rsi[i] = values[i]
		}
	}

	maPeriod := int(params.Get("ma_period", 20))
	if values, err := indicators.NewSMA(maPeriod).Calculate(bars); err == nil {
		for i := maPeriod - 1; i < n; i++ {
			ma[i] = values[i]
		}
	}

	atrPeriod := int(params.Get("atr_period", 14))
	if values, err := indicators.NewATR(atrPeriod).Calculate(bars); err == nil {
		for i := atrPeriod; i < n; i++ {
			atr[i] = values[i]
		}
	}

	return rsi, ma, atr
}

// ScalpingSignal trades short-lived momentum: recent price change,
// deviation from a 5-bar mean, move continuation and a volatility
// filter, with RSI and the slower moving average as modifiers.
func ScalpingSignal(ctx *SignalContext, params Params) StrategySignal {
	signal := StrategySignal{Action: ActionHold}
	if len(ctx.Bars) < 5 {
		return signal
	}

	current := ctx.Bars[len(ctx.Bars)-1]
	prev := ctx.Bars[len(ctx.Bars)-2]

	recent := closeTail(ctx.Bars, 5)
	shortMA := meanOf(recent)
	priceChange := (current.Close - prev.Close) / prev.Close
	maDeviation := (current.Close - shortMA) / shortMA
	volatility := sampleStd(recent) / shortMA

	var score float64

	switch {
	case priceChange > 0.0005:
		score += 50
	case priceChange < -0.0005:
		score -= 50
	}

	switch {
	case maDeviation > 0.0008:
		score += 25
	case maDeviation < -0.0008:
		score -= 25
	}

	if len(ctx.Bars) >= 3 {
		prev2 := ctx.Bars[len(ctx.Bars)-3]
		prevChange := (prev.Close - prev2.Close) / prev2.Close
		if priceChange > 0 && prevChange > 0 {
			score += 15
		} else if priceChange < 0 && prevChange < 0 {
			score -= 15
		}
	}

	switch {
	case volatility > 0.0008 && volatility < 0.003:
		score *= 1.2
	case volatility > 0.005:
		score *= 0.8
	}

	if !math.IsNaN(ctx.RSI) {
		if ctx.RSI < 40 {
			score += 20
		} else if ctx.RSI > 60 {
			score -= 20
		}
	}

	if !math.IsNaN(ctx.MA) {
		if current.Close > ctx.MA {
			score += 10
		} else if current.Close < ctx.MA {
			score -= 10
		}
	}

	threshold := params.Get("entry_threshold", 50)

	if score >= threshold {
		return StrategySignal{
			Action:     ActionBuy,
			Score:      score,
			StopLoss:   current.Close * 0.9995,
			TakeProfit: current.Close * 1.0030,
		}
	}
	if score <= -threshold {
		return StrategySignal{
			Action:     ActionSell,
			Score:      -score,
			StopLoss:   current.Close * 1.0005,
			TakeProfit: current.Close * 0.9970,
		}
	}
	return signal
}

// SwingSignal trades structure: Dow-theory trend strength and
// direction, pullback depth against the latest swing points, RSI
// positioning and an ATR volatility multiplier. Stops go just beyond
// the latest opposing swing point with a 1:2 risk-reward target.
func SwingSignal(ctx *SignalContext, params Params) StrategySignal {
	signal := StrategySignal{Action: ActionHold}
	if len(ctx.Bars) < 50 {
		return signal
	}

	current := ctx.Bars[len(ctx.Bars)-1]
	price := current.Close
	trend := ctx.Trend

	score := float64(trend.Strength)

	switch trend.Trend {
	case models.TrendUp:
		score += 20
	case models.TrendDown:
		score -= 20
	}

	recentHighs, recentLows := recentSwings(trend.SwingPoints, 10)

	if len(recentLows) > 0 {
		lastLow := recentLows[len(recentLows)-1].Price
		riseFromLow := (price - lastLow) / lastLow

		if trend.Trend == models.TrendUp && riseFromLow > 0.001 && riseFromLow < 0.01 {
			score += 30
		} else if trend.Trend == models.TrendDown && riseFromLow > 0.01 {
			score -= 20
		}
	}

	if len(recentHighs) > 0 {
		lastHigh := recentHighs[len(recentHighs)-1].Price
		fallFromHigh := (lastHigh - price) / lastHigh

		if trend.Trend == models.TrendDown && fallFromHigh > 0.001 && fallFromHigh < 0.01 {
			score -= 30
		} else if trend.Trend == models.TrendUp && fallFromHigh > 0.01 {
			score += 20
		}
	}

	if !math.IsNaN(ctx.RSI) {
		switch {
		case ctx.RSI < 30 && trend.Trend == models.TrendUp:
			score += 20
		case ctx.RSI > 70 && trend.Trend == models.TrendDown:
			score -= 20
		case ctx.RSI >= 30 && ctx.RSI <= 50 && trend.Trend == models.TrendUp:
			score += 10
		case ctx.RSI >= 50 && ctx.RSI <= 70 && trend.Trend == models.TrendDown:
			score -= 10
		}
	}

	if !math.IsNaN(ctx.ATR) && price > 0 {
		atrRatio := ctx.ATR / price
		if atrRatio > 0.002 && atrRatio < 0.01 {
			score *= 1.2
		} else if atrRatio > 0.02 {
			score *= 0.7
		}
	}

	threshold := params.Get("swing_entry_threshold", 60)

	if score >= threshold {
		stop := swingStop(recentLows, price, ctx.ATR, models.SideLong)
		return StrategySignal{
			Action:     ActionBuy,
			Score:      score,
			StopLoss:   stop,
			TakeProfit: price + (price-stop)*2,
		}
	}
	if score <= -threshold {
		stop := swingStop(recentHighs, price, ctx.ATR, models.SideShort)
		return StrategySignal{
			Action:     ActionSell,
			Score:      -score,
			StopLoss:   stop,
			TakeProfit: price - (stop-price)*2,
		}
	}
	return signal
}

// swingStop places the stop just beyond the latest opposing swing
// point, falling back to 2 ATR, then to a 1% offset.
func swingStop(points []models.SwingPoint, price, atr float64, side models.Side) float64 {
	if side == models.SideLong {
		if len(points) > 0 {
			return points[len(points)-1].Price * 0.998
		}
		if !math.IsNaN(atr) && atr > 0 {
			return price - atr*2
		}
		return price * 0.99
	}

	if len(points) > 0 {
		return points[len(points)-1].Price * 1.002
	}
	if !math.IsNaN(atr) && atr > 0 {
		return price + atr*2
	}
	return price * 1.01
}

// recentSwings splits the tail of the swing sequence into highs and lows.
func recentSwings(points []models.SwingPoint, tail int) (highs, lows []models.SwingPoint) {
	if len(points) > tail {
		points = points[len(points)-tail:]
	}
	for _, p := range points {
		if p.Kind == models.PointHigh {
			highs = append(highs, p)
		} else {
			lows = append(lows, p)
		}
	}
	return highs, lows
}

func closeTail(bars []models.Bar, n int) []float64 {
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

func meanOf(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// sampleStd is the sample standard deviation (n-1 denominator).
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := meanOf(values)
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
