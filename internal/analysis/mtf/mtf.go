// Package mtf provides multi-timeframe analysis functionality. A base
// bar series is resampled into slower views; each view gets its own
// Dow-theory trend read, and agreement across views feeds the composite
// scorer.
package mtf

import (
	"sort"
	"time"

	"wavetrader/internal/analysis/pivots"
	"wavetrader/internal/models"
)

// View is one timeframe's read on the same symbol.
type View struct {
	Timeframe models.Timeframe
	Bars      []models.Bar
	Trend     models.TrendAnalysis
}

// Confluence summarizes trend agreement across views.
type Confluence struct {
	Bullish   int
	Bearish   int
	Neutral   int
	Agreement int          // size of the largest directional camp
	Trend     models.Trend // direction of the largest camp
	Aligned   bool         // at least 3 views share a direction
}

// Analyzer builds timeframe views and summarizes their agreement.
type Analyzer struct {
	detector *pivots.Detector
}

// NewAnalyzer creates an analyzer using the given swing detector for
// per-view trend classification.
func NewAnalyzer(detector *pivots.Detector) *Analyzer {
	return &Analyzer{detector: detector}
}

// Resample aggregates bars into the slower target timeframe. Bars are
// bucketed by timestamp truncated to the target interval; each bucket
// keeps the first open, last close, extreme high/low and summed volume.
func Resample(bars []models.Bar, target models.Timeframe) []models.Bar {
	interval := target.Duration()
	if interval <= 0 || len(bars) == 0 {
		return nil
	}

	grouped := make(map[time.Time]*models.Bar)
	var order []time.Time

	for _, b := range bars {
		bucket := b.Timestamp.Truncate(interval)
		agg, ok := grouped[bucket]
		if !ok {
			copied := b
			copied.Timestamp = bucket
			grouped[bucket] = &copied
			order = append(order, bucket)
			continue
		}
		if b.High > agg.High {
			agg.High = b.High
		}
		if b.Low < agg.Low {
			agg.Low = b.Low
		}
		agg.Close = b.Close
		agg.Volume += b.Volume
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	result := make([]models.Bar, 0, len(order))
	for _, bucket := range order {
		result = append(result, *grouped[bucket])
	}
	return result
}

// BuildViews produces the base view plus one resampled view per higher
// timeframe, each with its trend classified.
func (a *Analyzer) BuildViews(bars []models.Bar, base models.Timeframe, higher []models.Timeframe) []View {
	views := make([]View, 0, len(higher)+1)

	baseView := View{Timeframe: base, Bars: bars}
	baseView.Trend = a.detector.ClassifyTrend(a.detector.DetectSwingPoints(bars))
	views = append(views, baseView)

	for _, tf := range higher {
		if tf.Duration() <= base.Duration() {
			continue
		}
		resampled := Resample(bars, tf)
		v := View{Timeframe: tf, Bars: resampled}
		v.Trend = a.detector.ClassifyTrend(a.detector.DetectSwingPoints(resampled))
		views = append(views, v)
	}

	return views
}

// Summarize counts directional agreement across views.
func Summarize(views []View) Confluence {
	var c Confluence

	for _, v := range views {
		switch v.Trend.Trend {
		case models.TrendUp:
			c.Bullish++
		case models.TrendDown:
			c.Bearish++
		case models.TrendSideways:
			c.Neutral++
		}
	}

	switch {
	case c.Bullish > c.Bearish:
		c.Agreement = c.Bullish
		c.Trend = models.TrendUp
	case c.Bearish > c.Bullish:
		c.Agreement = c.Bearish
		c.Trend = models.TrendDown
	default:
		c.Agreement = c.Bullish
		c.Trend = models.TrendSideways
	}

	c.Aligned = c.Agreement >= 3
	return c
}

// Slowest returns the view with the largest timeframe, or nil.
func Slowest(views []View) *View {
	if len(views) == 0 {
		return nil
	}
	slowest := &views[0]
	for i := range views[1:] {
		if views[i+1].Timeframe.Duration() > slowest.Timeframe.Duration() {
			slowest = &views[i+1]
		}
	}
	return slowest
}
