// Package scoring combines trend structure, Elliott wave position and
// market environment into a bounded 0-100 composite score with an
// actionable signal.
package scoring

import (
	"math"
	"strings"

	"wavetrader/internal/analysis/elliott"
	"wavetrader/internal/analysis/indicators"
	"wavetrader/internal/analysis/mtf"
	"wavetrader/internal/errors"
	"wavetrader/internal/models"
	"wavetrader/pkg/utils"
)

// Scorer computes composite score breakdowns and derives signals.
type Scorer struct {
	classifier *elliott.Classifier
	atr        *indicators.ATR
}

// NewScorer creates a scorer with default indicator periods.
func NewScorer() *Scorer {
	return &Scorer{
		classifier: elliott.NewClassifier(),
		atr:        indicators.NewATR(14),
	}
}

// Score computes the component breakdown. views[0] is the primary
// timeframe; additional views are slower reads of the same symbol.
// The breakdown is recomputed fresh on every call.
func (s *Scorer) Score(views []mtf.View, patterns []models.WavePattern) (models.ScoreBreakdown, error) {
	if len(views) == 0 || len(views[0].Bars) == 0 {
		return models.ScoreBreakdown{}, errors.ErrInsufficientData
	}

	primary := views[0]
	position := s.classifier.CurrentPosition(patterns)

	breakdown := models.ScoreBreakdown{
		TrendStrength:     s.trendStrengthScore(primary, views),
		ElliottWave:       waveScore(position),
		TechnicalAccuracy: s.technicalAccuracyScore(position, views),
		MarketEnvironment: s.marketEnvironmentScore(primary.Bars),
	}
	breakdown.Total = math.Min(
		breakdown.TrendStrength+breakdown.ElliottWave+breakdown.TechnicalAccuracy+breakdown.MarketEnvironment,
		100,
	)
	return breakdown, nil
}

// trendStrengthScore awards up to 30 points: structure persistence
// (consecutive higher highs/lows, up to 15), the price angle between
// the two most recent same-kind swing points (up to 10), and direction
// agreement across timeframe views (up to 5).
func (s *Scorer) trendStrengthScore(primary mtf.View, views []mtf.View) float64 {
	var score float64

	trend := primary.Trend
	up := float64(minInt(trend.HigherHighs+trend.HigherLows, 5)) * 3
	down := float64(minInt(trend.LowerHighs+trend.LowerLows, 5)) * 3
	score += math.Max(up, down)

	score += swingAngleScore(trend.SwingPoints)

	confluence := mtf.Summarize(views)
	if confluence.Agreement >= 3 {
		score += 5
	} else if confluence.Agreement >= 2 {
		score += 3
	}

	return math.Min(score, 30)
}

// swingAngleScore rewards steep recent structure, comparing the two
// most recent swing points of the same kind.
func swingAngleScore(points []models.SwingPoint) float64 {
	if len(points) < 2 {
		return 0
	}

	last := points[len(points)-1]
	for i := len(points) - 2; i >= 0; i-- {
		prev := points[i]
		if prev.Kind != last.Kind {
			continue
		}
		if last.Index == prev.Index || prev.Price <= 0 {
			return 0
		}
		change := math.Abs(last.Price - prev.Price)
		return math.Min(change/prev.Price*1000, 10)
	}
	return 0
}

func waveScore(position *elliott.Position) float64 {
	if position == nil {
		return 0
	}
	return math.Min(position.Score, 40)
}

// technicalAccuracyScore awards up to 10 points for Fibonacci ratio
// proximity to canonical levels and up to 10 when the slowest view's
// trend confirms the primary view.
func (s *Scorer) technicalAccuracyScore(position *elliott.Position, views []mtf.View) float64 {
	var score float64

	if position != nil {
		for name, value := range position.FibRatios {
			switch {
			case strings.Contains(name, "retracement"):
				diff := nearestDiff(value, 0.382, 0.5, 0.618)
				if diff <= 0.05 {
					score += 5
				} else if diff <= 0.1 {
					score += 3
				}
			case strings.Contains(name, "extension"):
				diff := nearestDiff(value, 1.618, 2.618)
				if diff <= 0.1 {
					score += 5
				} else if diff <= 0.2 {
					score += 3
				}
			}
		}
		score = math.Min(score, 10)
	}

	if len(views) >= 2 {
		primary := views[0].Trend.Trend
		slowest := mtf.Slowest(views).Trend.Trend

		directional := slowest == models.TrendUp || slowest == models.TrendDown
		if slowest == primary && directional {
			score += 10
		} else if directional {
			score += 5
		}
	}

	return math.Min(score, 20)
}

// marketEnvironmentScore awards up to 5 points for volatility inside
// the preferred band and up to 5 for session liquidity. The session is
// taken from the last bar's timestamp so replays stay deterministic.
func (s *Scorer) marketEnvironmentScore(bars []models.Bar) float64 {
	var score float64

	lastClose := bars[len(bars)-1].Close
	if atr, err := s.atr.Last(bars); err == nil && lastClose > 0 {
		volatility := atr / lastClose
		switch {
		case volatility >= 0.008 && volatility <= 0.012:
			score += 5
		case volatility >= 0.005 && volatility <= 0.015:
			score += 3
		case volatility > 0:
			score += 1
		}
	}

	score += float64(utils.SessionLiquidityScore(bars[len(bars)-1].Timestamp))

	return math.Min(score, 10)
}

// Signal derives the trade recommendation from a breakdown. Direction
// follows the primary view's trend; entry is the last close with stops
// and targets placed at ATR multiples.
func (s *Scorer) Signal(views []mtf.View, patterns []models.WavePattern) (models.Signal, error) {
	breakdown, err := s.Score(views, patterns)
	if err != nil {
		return models.Signal{}, err
	}

	primary := views[0]
	last := primary.Bars[len(primary.Bars)-1]

	signal := models.Signal{
		Timestamp: last.Timestamp,
		Strength:  strengthFor(breakdown.Total),
		Score:     breakdown,
	}

	directional := signal.Strength == models.SignalStrong || signal.Strength == models.SignalModerate
	if !directional {
		return signal, nil
	}

	switch primary.Trend.Trend {
	case models.TrendUp:
		signal.Side = models.SideLong
	case models.TrendDown:
		signal.Side = models.SideShort
	default:
		// A high score in a sideways market is advisory only.
		signal.Strength = models.SignalWeak
		return signal, nil
	}

	atr, err := s.atr.Last(primary.Bars)
	if err != nil || atr <= 0 {
		atr = last.Close * 0.01
	}

	signal.Entry = last.Close
	if signal.Side == models.SideLong {
		signal.StopLoss = last.Close - atr*2
		signal.TakeProfit = last.Close + atr*3
	} else {
		signal.StopLoss = last.Close + atr*2
		signal.TakeProfit = last.Close - atr*3
	}

	return signal, nil
}

func strengthFor(total float64) models.SignalStrength {
	switch {
	case total >= 80:
		return models.SignalStrong
	case total >= 60:
		return models.SignalModerate
	case total >= 40:
		return models.SignalWeak
	default:
		return models.SignalHold
	}
}

func nearestDiff(value float64, ideals ...float64) float64 {
	best := math.Inf(1)
	for _, ideal := range ideals {
		if d := math.Abs(value - ideal); d < best {
			best = d
		}
	}
	return best
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
