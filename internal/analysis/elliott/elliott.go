// Package elliott detects Elliott wave patterns on zigzag pivot
// sequences and scores them by Fibonacci ratio proximity.
//
// Impulse patterns (waves 1-5) are matched on sliding 8-point windows,
// corrective patterns (A-B-C) on 4-point windows, in both directions.
// Each candidate is filtered by the three classical impulse rules and a
// mean confidence threshold over the ratio-scored waves.
package elliott

import (
	"math"

	"wavetrader/internal/models"
)

// ratioRange is the canonical Fibonacci band for one wave role.
type ratioRange struct {
	min   float64
	max   float64
	ideal float64
}

// Classifier detects labeled wave patterns from zigzag points.
type Classifier struct {
	ranges map[string]ratioRange
}

// NewClassifier creates a classifier with the canonical ratio table.
func NewClassifier() *Classifier {
	return &Classifier{
		ranges: map[string]ratioRange{
			"wave2": {min: 0.382, max: 0.618, ideal: 0.5},
			"wave3": {min: 1.618, max: 2.618, ideal: 1.618},
			"wave4": {min: 0.236, max: 0.5, ideal: 0.382},
			"wave5": {min: 0.618, max: 1.0, ideal: 1.0},
			"waveA": {min: 0.382, max: 0.618, ideal: 0.5},
			"waveB": {min: 0.382, max: 0.886, ideal: 0.618},
			"waveC": {min: 0.618, max: 1.618, ideal: 1.0},
		},
	}
}

// Detect returns every accepted wave pattern found in the pivot
// sequence. Requires at least 5 points for corrective and 8 for impulse
// detection; fewer points yield an empty result.
func (c *Classifier) Detect(points []models.ZigZagPoint) []models.WavePattern {
	if len(points) < 5 {
		return nil
	}

	var patterns []models.WavePattern
	patterns = append(patterns, c.detectImpulses(points)...)
	patterns = append(patterns, c.detectCorrectives(points)...)
	return patterns
}

func (c *Classifier) detectImpulses(points []models.ZigZagPoint) []models.WavePattern {
	if len(points) < 8 {
		return nil
	}

	var patterns []models.WavePattern
	for i := 0; i+8 <= len(points); i++ {
		window := points[i : i+8]
		switch points[i].Kind {
		case models.PointLow:
			patterns = append(patterns, c.checkImpulse(window, models.TrendUp)...)
		case models.PointHigh:
			patterns = append(patterns, c.checkImpulse(window, models.TrendDown)...)
		}
	}
	return patterns
}

// checkImpulse validates one 8-point window against the impulse rules:
// wave 2 must not cross the wave-1 origin, wave 3 must not be the
// shortest of 1/3/5, and wave 4 must not enter wave 1's territory.
func (c *Classifier) checkImpulse(pts []models.ZigZagPoint, dir models.Trend) []models.WavePattern {
	p0 := pts[0].Price
	p1 := pts[1].Price
	p2 := pts[2].Price
	p3 := pts[3].Price
	p4 := pts[4].Price
	p5 := pts[5].Price

	// Signed move helper: positive along the pattern direction.
	sign := 1.0
	if dir == models.TrendDown {
		sign = -1.0
	}

	if sign*(p2-p0) <= 0 {
		return nil
	}

	wave1Len := sign * (p1 - p0)
	wave3Len := sign * (p3 - p2)
	wave5Len := sign * (p5 - p4)
	if wave3Len < wave1Len && wave3Len < wave5Len {
		return nil
	}

	if sign*(p4-p1) <= 0 {
		return nil
	}

	var ratio2, ratio3, ratio4, ratio5 float64
	if wave1Len > 0 {
		ratio2 = sign * (p1 - p2) / wave1Len
		ratio3 = wave3Len / wave1Len
		ratio5 = wave5Len / wave1Len
	}
	if wave3Len > 0 {
		ratio4 = sign * (p3 - p4) / wave3Len
	}

	conf2 := c.ratioConfidence(ratio2, "wave2")
	conf3 := c.ratioConfidence(ratio3, "wave3")
	conf4 := c.ratioConfidence(ratio4, "wave4")
	conf5 := c.ratioConfidence(ratio5, "wave5")

	if (conf2+conf3+conf4+conf5)/4 < 0.6 {
		return nil
	}

	mk := func(label models.WaveLabel, a, b int, conf float64, ratios map[string]float64) models.WavePattern {
		return models.WavePattern{
			Label:      label,
			Kind:       models.PatternImpulse,
			Direction:  dir,
			StartIndex: pts[a].Index,
			EndIndex:   pts[b].Index,
			StartPrice: pts[a].Price,
			EndPrice:   pts[b].Price,
			Confidence: conf,
			FibRatios:  ratios,
		}
	}

	return []models.WavePattern{
		mk(models.Wave1, 0, 1, 0.8, nil),
		mk(models.Wave2, 1, 2, conf2, map[string]float64{"retracement": ratio2}),
		mk(models.Wave3, 2, 3, conf3, map[string]float64{"extension": ratio3}),
		mk(models.Wave4, 3, 4, conf4, map[string]float64{"retracement": ratio4}),
		mk(models.Wave5, 4, 5, conf5, map[string]float64{"ratio_to_wave1": ratio5}),
	}
}

func (c *Classifier) detectCorrectives(points []models.ZigZagPoint) []models.WavePattern {
	var patterns []models.WavePattern
	for i := 0; i+4 <= len(points); i++ {
		window := points[i : i+4]
		switch points[i].Kind {
		case models.PointLow:
			patterns = append(patterns, c.checkCorrective(window, models.TrendUp)...)
		case models.PointHigh:
			patterns = append(patterns, c.checkCorrective(window, models.TrendDown)...)
		}
	}
	return patterns
}

// checkCorrective validates one 4-point A-B-C window. The pattern is
// accepted when the mean confidence of waves B and C is at least 0.5.
func (c *Classifier) checkCorrective(pts []models.ZigZagPoint, dir models.Trend) []models.WavePattern {
	p0 := pts[0].Price
	p1 := pts[1].Price
	p2 := pts[2].Price
	p3 := pts[3].Price

	sign := 1.0
	if dir == models.TrendDown {
		sign = -1.0
	}

	waveALen := sign * (p1 - p0)

	var ratioB, ratioC float64
	if waveALen > 0 {
		ratioB = sign * (p1 - p2) / waveALen
		ratioC = sign * (p3 - p2) / waveALen
	}

	confB := c.ratioConfidence(ratioB, "waveB")
	confC := c.ratioConfidence(ratioC, "waveC")

	if (confB+confC)/2 < 0.5 {
		return nil
	}

	mk := func(label models.WaveLabel, a, b int, conf float64, ratios map[string]float64) models.WavePattern {
		return models.WavePattern{
			Label:      label,
			Kind:       models.PatternCorrective,
			Direction:  dir,
			StartIndex: pts[a].Index,
			EndIndex:   pts[b].Index,
			StartPrice: pts[a].Price,
			EndPrice:   pts[b].Price,
			Confidence: conf,
			FibRatios:  ratios,
		}
	}

	return []models.WavePattern{
		mk(models.WaveA, 0, 1, 0.7, nil),
		mk(models.WaveB, 1, 2, confB, map[string]float64{"retracement": ratioB}),
		mk(models.WaveC, 2, 3, confC, map[string]float64{"ratio_to_waveA": ratioC}),
	}
}

// ratioConfidence scores how close a measured ratio sits to the
// canonical band for the wave role. Inside the band the score decays
// linearly from 1.0 at the ideal down to 0.5 at the band edge distance;
// outside it decays from 0.7 with the relative overshoot, floored at 0.3.
func (c *Classifier) ratioConfidence(ratio float64, role string) float64 {
	r, ok := c.ranges[role]
	if !ok {
		return 0.5
	}

	if ratio >= r.min && ratio <= r.max {
		deviation := math.Abs(ratio-r.ideal) / (r.max - r.min)
		return 1.0 - deviation*0.5
	}

	var deviation float64
	if ratio < r.min {
		deviation = (r.min - ratio) / r.min
	} else {
		deviation = (ratio - r.max) / r.max
	}
	return math.Max(0.3, 0.7-deviation)
}

// Position is the wave count's read on where price currently sits.
type Position struct {
	Label      models.WaveLabel
	Kind       models.PatternKind
	Confidence float64
	Score      float64 // 0-40
	NextTarget *float64
	FibRatios  map[string]float64
}

// baseScores weights wave positions by forward opportunity. Wave 3 is
// the strongest continuation, wave 1 an early entry, wave 5 late trend;
// corrective positions and countertrend waves score low.
var baseScores = map[models.WaveLabel]float64{
	models.Wave1: 30,
	models.Wave2: 5,
	models.Wave3: 40,
	models.Wave4: 5,
	models.Wave5: 20,
	models.WaveA: 10,
	models.WaveB: 5,
	models.WaveC: 15,
}

// CurrentPosition selects the pattern with the greatest end index and
// scores it. For a wave-3 position the next objective is the 1.618
// extension of wave 1's length projected from the wave-3 origin.
func (c *Classifier) CurrentPosition(patterns []models.WavePattern) *Position {
	if len(patterns) == 0 {
		return nil
	}

	latest := patterns[0]
	for _, p := range patterns[1:] {
		if p.EndIndex > latest.EndIndex {
			latest = p
		}
	}

	base, ok := baseScores[latest.Label]
	if !ok {
		base = 5
	}
	score := math.Min(base*latest.Confidence, 40)

	pos := &Position{
		Label:      latest.Label,
		Kind:       latest.Kind,
		Confidence: latest.Confidence,
		Score:      score,
		FibRatios:  latest.FibRatios,
	}

	if latest.Label == models.Wave3 {
		if target, ok := wave3Target(latest); ok {
			pos.NextTarget = &target
		}
	}

	return pos
}

// wave3Target projects the 1.618 extension of wave 1's length from the
// wave-3 start. Wave 1's length is recovered from the stored extension
// ratio (wave3 length / wave1 length).
func wave3Target(w models.WavePattern) (float64, bool) {
	ext, ok := w.FibRatios["extension"]
	if !ok || ext <= 0 {
		return 0, false
	}

	wave3Len := math.Abs(w.EndPrice - w.StartPrice)
	wave1Len := wave3Len / ext
	if wave1Len <= 0 {
		return 0, false
	}

	if w.EndPrice > w.StartPrice {
		return w.StartPrice + wave1Len*1.618, true
	}
	return w.StartPrice - wave1Len*1.618, true
}
