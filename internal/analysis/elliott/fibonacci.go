package elliott

import "math"

// FibLevels is the standard retracement/extension ladder.
var FibLevels = []float64{0.236, 0.382, 0.5, 0.618, 0.786, 1.0, 1.272, 1.618, 2.0, 2.618}

// projectionLevels are the ratios used for forward price objectives.
var projectionLevels = []float64{0.618, 1.0, 1.272, 1.618, 2.0, 2.618}

// Retracements returns the Fibonacci price ladder for a swing from low
// to high. Ratios at or below 1.0 retrace down from the high, ratios
// above 1.0 extend up from the low.
func Retracements(high, low float64) map[float64]float64 {
	diff := high - low
	levels := make(map[float64]float64, len(FibLevels))

	for _, level := range FibLevels {
		if level <= 1.0 {
			levels[level] = high - diff*level
		} else {
			levels[level] = low + diff*level
		}
	}
	return levels
}

// Projections returns price objectives for a third wave, measured as
// multiples of wave 1's length projected from the wave-2 end.
func Projections(wave1Start, wave1End, wave2End float64) map[float64]float64 {
	wave1Len := math.Abs(wave1End - wave1Start)
	projections := make(map[float64]float64, len(projectionLevels))

	for _, level := range projectionLevels {
		if wave1End > wave1Start {
			projections[level] = wave2End + wave1Len*level
		} else {
			projections[level] = wave2End - wave1Len*level
		}
	}
	return projections
}
