package backtest

import (
	"math"

	"wavetrader/internal/models"
)

// Horizon lengths, in bars, for the multi-timeframe consensus read.
const (
	mtfShortPeriod  = 20
	mtfMediumPeriod = 60
	mtfLongPeriod   = 120
)

// horizonRead is one horizon's Dow-theory read.
type horizonRead struct {
	dir        models.Trend // TrendUp, TrendDown or TrendSideways
	grade      int          // 0 none, 1 weak, 2 plain, 3 strong
	strength   float64      // 0-1
	confidence float64      // 0-1
}

// consensusRead aggregates the three horizon reads, weighted toward
// the slower horizons.
type consensusRead struct {
	dir        models.Trend // TrendSideways when no consensus
	strength   float64
	confidence float64
	upCount    int
	downCount  int
}

// MTFConsensusSignal requires agreement between short, medium and long
// horizon structure reads of the same series before entering, plus a
// momentum confirmation from volume and recent price change.
func MTFConsensusSignal(ctx *SignalContext, params Params) StrategySignal {
	signal := StrategySignal{Action: ActionHold}
	if len(ctx.Bars) < mtfLongPeriod {
		return signal
	}

	price := ctx.Bars[len(ctx.Bars)-1].Close

	short := analyzeHorizon(ctx.Bars, mtfShortPeriod)
	medium := analyzeHorizon(ctx.Bars, mtfMediumPeriod)
	long := analyzeHorizon(ctx.Bars, mtfLongPeriod)

	consensus := buildConsensus(short, medium, long)

	total := higherHorizonScore(long, medium) +
		lowerHorizonScore(short, consensus) +
		momentumScore(ctx.Bars)

	threshold := params.Get("mtf_threshold", 70)
	if total < threshold {
		return signal
	}

	var action Action
	switch {
	case consensus.dir == models.TrendUp && (short.dir == models.TrendUp || short.dir == models.TrendSideways):
		action = ActionBuy
	case consensus.dir == models.TrendDown && (short.dir == models.TrendDown || short.dir == models.TrendSideways):
		action = ActionSell
	default:
		return signal
	}

	// Exit levels use a fixed 1.5% volatility proxy.
	volatility := price * 0.015
	sig := StrategySignal{Action: action, Score: total}
	if action == ActionBuy {
		sig.StopLoss = price - volatility*2
		sig.TakeProfit = price + volatility*3
	} else {
		sig.StopLoss = price + volatility*2
		sig.TakeProfit = price - volatility*3
	}
	return sig
}

// analyzeHorizon reads structure over the last period*3 bars using a
// swing window scaled to the horizon.
func analyzeHorizon(bars []models.Bar, period int) horizonRead {
	window := bars
	if len(window) > period*3 {
		window = window[len(window)-period*3:]
	}
	if len(window) < period {
		return horizonRead{dir: models.TrendSideways}
	}

	swingPeriod := maxInt(3, period/10)
	highs, lows := horizonSwings(window, swingPeriod)

	read := classifyHorizonTrend(highs, lows)
	read.strength = horizonStrength(window, len(highs)+len(lows))
	return read
}

// horizonSwings finds local extrema with a non-strict window compare,
// so plateau bars still register.
func horizonSwings(bars []models.Bar, swingPeriod int) (highs, lows []float64) {
	for i := swingPeriod; i < len(bars)-swingPeriod; i++ {
		isHigh, isLow := true, true
		for j := i - swingPeriod; j <= i+swingPeriod; j++ {
			if bars[j].High > bars[i].High {
				isHigh = false
			}
			if bars[j].Low < bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			highs = append(highs, bars[i].High)
		}
		if isLow {
			lows = append(lows, bars[i].Low)
		}
	}
	return highs, lows
}

// classifyHorizonTrend grades the direction from the two most recent
// swing highs and lows.
func classifyHorizonTrend(highs, lows []float64) horizonRead {
	if len(highs) < 2 || len(lows) < 2 {
		return horizonRead{dir: models.TrendSideways}
	}

	const (
		neutral = iota
		rising
		falling
	)

	highTrend := neutral
	if highs[len(highs)-1] > highs[len(highs)-2] {
		highTrend = rising
	} else if highs[len(highs)-1] < highs[len(highs)-2] {
		highTrend = falling
	}

	lowTrend := neutral
	if lows[len(lows)-1] > lows[len(lows)-2] {
		lowTrend = rising
	} else if lows[len(lows)-1] < lows[len(lows)-2] {
		lowTrend = falling
	}

	switch {
	case highTrend == rising && lowTrend == rising:
		return horizonRead{dir: models.TrendUp, grade: 3, confidence: 0.9}
	case highTrend == rising && lowTrend == neutral:
		return horizonRead{dir: models.TrendUp, grade: 2, confidence: 0.7}
	case highTrend == neutral && lowTrend == rising:
		return horizonRead{dir: models.TrendUp, grade: 1, confidence: 0.6}
	case highTrend == falling && lowTrend == falling:
		return horizonRead{dir: models.TrendDown, grade: 3, confidence: 0.9}
	case highTrend == falling && lowTrend == neutral:
		return horizonRead{dir: models.TrendDown, grade: 2, confidence: 0.7}
	case highTrend == neutral && lowTrend == falling:
		return horizonRead{dir: models.TrendDown, grade: 1, confidence: 0.6}
	}
	return horizonRead{dir: models.TrendSideways, confidence: 0.4}
}

// horizonStrength blends directional consistency, normalized range and
// swing clarity into a 0-1 strength.
func horizonStrength(bars []models.Bar, swingCount int) float64 {
	if len(bars) < 20 {
		return 0
	}

	positive := 0
	total := 0
	minClose, maxClose := bars[0].Close, bars[0].Close
	var sumClose float64

	for i, b := range bars {
		sumClose += b.Close
		if b.Close < minClose {
			minClose = b.Close
		}
		if b.Close > maxClose {
			maxClose = b.Close
		}
		if i == 0 {
			continue
		}
		total++
		if b.Close > bars[i-1].Close {
			positive++
		}
	}

	consistency := math.Abs(float64(positive)/float64(total)-0.5) * 2
	meanClose := sumClose / float64(len(bars))
	momentum := math.Min((maxClose-minClose)/meanClose*10, 1)

	var clarity float64
	if swingCount > 0 {
		clarity = math.Min(float64(swingCount)/(float64(len(bars))/20), 1)
	}

	return math.Min(consistency*0.4+momentum*0.4+clarity*0.2, 1)
}

// buildConsensus weights the horizon reads 0.5/0.3/0.2 slow-to-fast.
// Weak reads do not count toward directional agreement.
func buildConsensus(short, medium, long horizonRead) consensusRead {
	c := consensusRead{
		dir:        models.TrendSideways,
		strength:   long.strength*0.5 + medium.strength*0.3 + short.strength*0.2,
		confidence: long.confidence*0.5 + medium.confidence*0.3 + short.confidence*0.2,
	}

	for _, r := range []horizonRead{short, medium, long} {
		if r.grade < 2 {
			continue
		}
		if r.dir == models.TrendUp {
			c.upCount++
		} else if r.dir == models.TrendDown {
			c.downCount++
		}
	}

	if c.upCount >= 2 && c.strength > 0.6 {
		c.dir = models.TrendUp
	} else if c.downCount >= 2 && c.strength > 0.6 {
		c.dir = models.TrendDown
	}
	return c
}

// higherHorizonScore awards up to 40 points for slow-horizon trend
// clarity, in either direction.
func higherHorizonScore(long, medium horizonRead) float64 {
	var score float64

	switch long.grade {
	case 3:
		score += 25
	case 2:
		score += 20
	case 1:
		score += 10
	}

	switch medium.grade {
	case 3:
		score += 15
	case 2:
		score += 12
	case 1:
		score += 6
	}

	return math.Min(score, 40)
}

// lowerHorizonScore awards up to 30 points for short-horizon timing
// and agreement with the consensus.
func lowerHorizonScore(short horizonRead, consensus consensusRead) float64 {
	var score float64

	switch short.grade {
	case 3:
		score += 15
	case 2:
		score += 12
	case 1:
		score += 6
	}

	if consensus.dir == models.TrendUp || consensus.dir == models.TrendDown {
		if short.dir == consensus.dir {
			score += 10
		} else {
			score += 3
		}
	}

	score += consensus.confidence * 5

	return math.Min(score, 30)
}

// momentumScore awards up to 30 points for volume expansion and recent
// price momentum.
func momentumScore(bars []models.Bar) float64 {
	if len(bars) < 20 {
		return 0
	}

	var score float64

	recentVolume := volumeMean(bars, 5)
	avgVolume := volumeMean(bars, 20)

	switch {
	case recentVolume > avgVolume*1.3:
		score += 15
	case recentVolume > avgVolume*1.1:
		score += 10
	case recentVolume > avgVolume:
		score += 5
	}

	recentClose := bars[len(bars)-1].Close
	prevClose := bars[len(bars)-10].Close
	momentum := math.Abs((recentClose - prevClose) / prevClose)

	switch {
	case momentum > 0.01:
		score += 15
	case momentum > 0.005:
		score += 10
	case momentum > 0.002:
		score += 5
	}

	return math.Min(score, 30)
}

func volumeMean(bars []models.Bar, n int) float64 {
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	var total float64
	for _, b := range bars {
		total += float64(b.Volume)
	}
	return total / float64(len(bars))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
