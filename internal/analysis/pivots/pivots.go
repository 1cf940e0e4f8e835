// Package pivots provides Dow-theory swing point detection and trend
// classification.
package pivots

import (
	"math"
	"sort"

	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

// Detector finds swing highs/lows and classifies market structure.
type Detector struct {
	window      int     // bars on each side of a candidate extremum
	minDistance float64 // minimum price distance between same-kind points
}

// NewDetector creates a detector with default sensitivity.
func NewDetector() *Detector {
	return &Detector{
		window:      5,
		minDistance: 0.001,
	}
}

// NewDetectorWith creates a detector with explicit parameters.
func NewDetectorWith(window int, minDistance float64) (*Detector, error) {
	if window < 1 {
		return nil, errors.NewValidationError("window", window, "must be >= 1")
	}
	if minDistance < 0 {
		return nil, errors.NewValidationError("min_distance", minDistance, "must be >= 0")
	}
	return &Detector{window: window, minDistance: minDistance}, nil
}

// DetectSwingPoints returns confirmed swing highs and lows ordered by index.
//
// An interior bar is a swing high when its high is the strict maximum of
// the closed window [i-W, i+W]; the mirrored rule on lows marks a swing
// low. The first and last bar are checked against their available half
// window so a monotonic series still yields its boundary extremum.
// Same-kind points closer than the minimum price distance collapse into
// the more extreme one.
func (d *Detector) DetectSwingPoints(bars []models.Bar) []models.SwingPoint {
	n := len(bars)
	if n < 2 {
		return nil
	}

	var points []models.SwingPoint

	w := d.window
	if w > n-1 {
		w = n - 1
	}

	if isStrictHigh(bars, 0, 0, minInt(w, n-1)) {
		points = append(points, swingHigh(bars, 0))
	}
	if isStrictLow(bars, 0, 0, minInt(w, n-1)) {
		points = append(points, swingLow(bars, 0))
	}

	for i := d.window; i < n-d.window; i++ {
		if isStrictHigh(bars, i, i-d.window, i+d.window) {
			points = append(points, swingHigh(bars, i))
		}
		if isStrictLow(bars, i, i-d.window, i+d.window) {
			points = append(points, swingLow(bars, i))
		}
	}

	last := n - 1
	if isStrictHigh(bars, last, maxInt(0, last-w), last) {
		points = append(points, swingHigh(bars, last))
	}
	if isStrictLow(bars, last, maxInt(0, last-w), last) {
		points = append(points, swingLow(bars, last))
	}

	sortByIndex(points)
	return d.filterByDistance(points)
}

func isStrictHigh(bars []models.Bar, i, lo, hi int) bool {
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if bars[j].High >= bars[i].High {
			return false
		}
	}
	return hi > lo
}

func isStrictLow(bars []models.Bar, i, lo, hi int) bool {
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if bars[j].Low <= bars[i].Low {
			return false
		}
	}
	return hi > lo
}

func swingHigh(bars []models.Bar, i int) models.SwingPoint {
	return models.SwingPoint{
		Index:     i,
		Timestamp: bars[i].Timestamp,
		Price:     bars[i].High,
		Kind:      models.PointHigh,
	}
}

func swingLow(bars []models.Bar, i int) models.SwingPoint {
	return models.SwingPoint{
		Index:     i,
		Timestamp: bars[i].Timestamp,
		Price:     bars[i].Low,
		Kind:      models.PointLow,
	}
}

// filterByDistance collapses consecutive same-kind points whose price
// difference is below the minimum distance, keeping the more extreme one.
func (d *Detector) filterByDistance(points []models.SwingPoint) []models.SwingPoint {
	if len(points) == 0 {
		return points
	}

	filtered := []models.SwingPoint{points[0]}

	for _, p := range points[1:] {
		last := filtered[len(filtered)-1]

		if p.Kind != last.Kind {
			filtered = append(filtered, p)
			continue
		}

		if math.Abs(p.Price-last.Price) >= d.minDistance {
			filtered = append(filtered, p)
		} else if (p.Kind == models.PointHigh && p.Price > last.Price) ||
			(p.Kind == models.PointLow && p.Price < last.Price) {
			filtered[len(filtered)-1] = p
		}
	}

	return filtered
}

// ClassifyTrend derives the Dow-theory trend from a swing point sequence.
// With fewer than two highs and two lows the result is TrendInsufficient
// with strength zero.
func (d *Detector) ClassifyTrend(points []models.SwingPoint) models.TrendAnalysis {
	result := models.TrendAnalysis{
		Trend:       models.TrendInsufficient,
		SwingPoints: points,
	}

	if len(points) < 4 {
		return result
	}

	var highs, lows []models.SwingPoint
	for _, p := range points {
		if p.Kind == models.PointHigh {
			highs = append(highs, p)
		} else {
			lows = append(lows, p)
		}
	}

	if len(highs) < 2 || len(lows) < 2 {
		return result
	}

	for i := 1; i < len(highs); i++ {
		if highs[i].Price > highs[i-1].Price {
			result.HigherHighs++
		} else if highs[i].Price < highs[i-1].Price {
			result.LowerHighs++
		}
	}
	for i := 1; i < len(lows); i++ {
		if lows[i].Price > lows[i-1].Price {
			result.HigherLows++
		} else if lows[i].Price < lows[i-1].Price {
			result.LowerLows++
		}
	}

	result.Trend = determineTrend(result)
	result.Strength = trendStrength(result)
	return result
}

func determineTrend(r models.TrendAnalysis) models.Trend {
	up := r.HigherHighs + r.HigherLows
	down := r.LowerHighs + r.LowerLows

	switch {
	case up > down && up >= 2:
		return models.TrendUp
	case down > up && down >= 2:
		return models.TrendDown
	default:
		return models.TrendSideways
	}
}

// trendStrength scores structure quality 0-30. The consistency bonus
// rewards highs and lows advancing together, not just one side.
func trendStrength(r models.TrendAnalysis) int {
	up := r.HigherHighs + r.HigherLows
	down := r.LowerHighs + r.LowerLows

	if up+down == 0 {
		return 0
	}

	maxScore := up
	bonus := minInt(r.HigherHighs*r.HigherLows, 5)
	if down > up {
		maxScore = down
		bonus = minInt(r.LowerHighs*r.LowerLows, 5)
	}

	return minInt(maxScore*5+bonus, 30)
}

func sortByIndex(points []models.SwingPoint) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].Index < points[j].Index
	})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
