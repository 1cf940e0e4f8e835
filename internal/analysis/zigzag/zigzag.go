// Package zigzag provides a deviation-threshold pivot filter. A new
// extreme is only confirmed once price reverses against it by at least
// the configured fraction, which suppresses noise between swings.
package zigzag

import (
	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

// Filter computes alternating peak/trough pivots from a bar series.
type Filter struct {
	deviation float64 // minimum reversal fraction, e.g. 0.005
}

// NewFilter creates a filter with the given reversal threshold.
func NewFilter(deviation float64) (*Filter, error) {
	if deviation <= 0 || deviation >= 1 {
		return nil, errors.NewValidationError("deviation", deviation, "must be in (0, 1)")
	}
	return &Filter{deviation: deviation}, nil
}

// Compute runs the two-state reversal machine over the bars.
//
// While tracking up the running extreme follows every higher high; a
// retracement of at least the deviation from that extreme confirms a
// peak, flips the direction and restarts the extreme at the current low.
// The mirrored rule applies while tracking down. The unconfirmed final
// extreme is flushed as a last point, so output ends at the most recent
// swing. Consecutive points strictly alternate kind by construction.
func (f *Filter) Compute(bars []models.Bar) []models.ZigZagPoint {
	if len(bars) < 3 {
		return nil
	}

	var points []models.ZigZagPoint

	extreme := bars[0].High
	extremeIdx := 0
	trackingUp := true

	for i := 1; i < len(bars); i++ {
		high := bars[i].High
		low := bars[i].Low

		if trackingUp {
			if high > extreme {
				extreme = high
				extremeIdx = i
			}

			decline := (extreme - low) / extreme
			if decline >= f.deviation {
				points = append(points, models.ZigZagPoint{
					Index:     extremeIdx,
					Timestamp: bars[extremeIdx].Timestamp,
					Price:     extreme,
					Kind:      models.PointHigh,
				})
				trackingUp = false
				extreme = low
				extremeIdx = i
			}
		} else {
			if low < extreme {
				extreme = low
				extremeIdx = i
			}

			rise := (high - extreme) / extreme
			if rise >= f.deviation {
				points = append(points, models.ZigZagPoint{
					Index:     extremeIdx,
					Timestamp: bars[extremeIdx].Timestamp,
					Price:     extreme,
					Kind:      models.PointLow,
				})
				trackingUp = true
				extreme = high
				extremeIdx = i
			}
		}
	}

	// Flush the running extreme so the sequence ends at the live swing.
	if len(points) > 0 {
		kind := models.PointLow
		if trackingUp {
			kind = models.PointHigh
		}
		points = append(points, models.ZigZagPoint{
			Index:     extremeIdx,
			Timestamp: bars[extremeIdx].Timestamp,
			Price:     extreme,
			Kind:      kind,
		})
	}

	return points
}
