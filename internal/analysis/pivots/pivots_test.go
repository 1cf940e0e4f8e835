package pivots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavetrader/internal/models"
)

func barsFromValues(values []float64) []models.Bar {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, len(values))
	for i, v := range values {
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      v,
			High:      v + 0.5,
			Low:       v - 0.5,
			Close:     v,
			Volume:    1000,
		}
	}
	return bars
}

func TestNewDetectorWithValidation(t *testing.T) {
	_, err := NewDetectorWith(0, 0.001)
	assert.Error(t, err)

	_, err = NewDetectorWith(5, -1)
	assert.Error(t, err)

	d, err := NewDetectorWith(2, 0)
	require.NoError(t, err)
	assert.NotNil(t, d)
}

func TestDetectSwingPointsTriangleSeries(t *testing.T) {
	// Peak at index 4, trough at index 8, rising into the last bar.
	values := []float64{10, 11, 12, 13, 14, 13, 12, 11, 10, 11, 12, 13, 14, 15}
	detector, err := NewDetectorWith(2, 0)
	require.NoError(t, err)

	points := detector.DetectSwingPoints(barsFromValues(values))
	require.Len(t, points, 4)

	assert.Equal(t, models.PointLow, points[0].Kind)
	assert.Equal(t, 0, points[0].Index)

	assert.Equal(t, models.PointHigh, points[1].Kind)
	assert.Equal(t, 4, points[1].Index)
	assert.Equal(t, 14.5, points[1].Price)

	assert.Equal(t, models.PointLow, points[2].Kind)
	assert.Equal(t, 8, points[2].Index)
	assert.Equal(t, 9.5, points[2].Price)

	assert.Equal(t, models.PointHigh, points[3].Kind)
	assert.Equal(t, len(values)-1, points[3].Index)
}

func TestDetectSwingPointsMonotonicSeries(t *testing.T) {
	values := make([]float64, 12)
	for i := range values {
		values[i] = 100 + float64(i)
	}

	detector, err := NewDetectorWith(3, 0)
	require.NoError(t, err)

	// A rising series has no interior extrema, only the boundary low
	// at the start and the boundary high at the end.
	points := detector.DetectSwingPoints(barsFromValues(values))
	require.Len(t, points, 2)
	assert.Equal(t, models.PointLow, points[0].Kind)
	assert.Equal(t, 0, points[0].Index)
	assert.Equal(t, models.PointHigh, points[1].Kind)
	assert.Equal(t, len(values)-1, points[1].Index)
}

func TestDetectSwingPointsTooFewBars(t *testing.T) {
	detector := NewDetector()
	assert.Nil(t, detector.DetectSwingPoints(nil))
	assert.Nil(t, detector.DetectSwingPoints(barsFromValues([]float64{10})))
}

func TestFilterByDistanceCollapsesNearbyHighs(t *testing.T) {
	detector, err := NewDetectorWith(2, 1.0)
	require.NoError(t, err)

	points := []models.SwingPoint{
		{Index: 1, Price: 12.5, Kind: models.PointHigh},
		{Index: 3, Price: 12.9, Kind: models.PointHigh},
		{Index: 5, Price: 9.5, Kind: models.PointLow},
	}

	filtered := detector.filterByDistance(points)
	require.Len(t, filtered, 2)
	// The more extreme of the two nearby highs survives.
	assert.Equal(t, 12.9, filtered[0].Price)
	assert.Equal(t, 3, filtered[0].Index)
	assert.Equal(t, models.PointLow, filtered[1].Kind)
}

func swingAt(index int, price float64, kind models.PointKind) models.SwingPoint {
	return models.SwingPoint{Index: index, Price: price, Kind: kind}
}

func TestClassifyTrendUptrend(t *testing.T) {
	points := []models.SwingPoint{
		swingAt(0, 5, models.PointLow),
		swingAt(2, 10, models.PointHigh),
		swingAt(4, 6, models.PointLow),
		swingAt(6, 11, models.PointHigh),
		swingAt(8, 7, models.PointLow),
		swingAt(10, 12, models.PointHigh),
	}

	result := NewDetector().ClassifyTrend(points)

	assert.Equal(t, models.TrendUp, result.Trend)
	assert.Equal(t, 2, result.HigherHighs)
	assert.Equal(t, 2, result.HigherLows)
	assert.Equal(t, 0, result.LowerHighs)
	assert.Equal(t, 0, result.LowerLows)
	// 4 advancing structures * 5 plus the HH*HL consistency bonus.
	assert.Equal(t, 24, result.Strength)
}

func TestClassifyTrendDowntrend(t *testing.T) {
	points := []models.SwingPoint{
		swingAt(0, 12, models.PointHigh),
		swingAt(2, 8, models.PointLow),
		swingAt(4, 11, models.PointHigh),
		swingAt(6, 7, models.PointLow),
		swingAt(8, 10, models.PointHigh),
		swingAt(10, 6, models.PointLow),
	}

	result := NewDetector().ClassifyTrend(points)

	assert.Equal(t, models.TrendDown, result.Trend)
	assert.Equal(t, 2, result.LowerHighs)
	assert.Equal(t, 2, result.LowerLows)
}

func TestClassifyTrendSideways(t *testing.T) {
	points := []models.SwingPoint{
		swingAt(0, 10, models.PointHigh),
		swingAt(2, 5, models.PointLow),
		swingAt(4, 11, models.PointHigh),
		swingAt(6, 4, models.PointLow),
	}

	result := NewDetector().ClassifyTrend(points)
	// One higher high against one lower low: no side dominates.
	assert.Equal(t, models.TrendSideways, result.Trend)
}

func TestClassifyTrendInsufficientData(t *testing.T) {
	result := NewDetector().ClassifyTrend(nil)
	assert.Equal(t, models.TrendInsufficient, result.Trend)
	assert.Equal(t, 0, result.Strength)

	// Four points but only one low.
	points := []models.SwingPoint{
		swingAt(0, 10, models.PointHigh),
		swingAt(2, 11, models.PointHigh),
		swingAt(4, 12, models.PointHigh),
		swingAt(6, 5, models.PointLow),
	}
	result = NewDetector().ClassifyTrend(points)
	assert.Equal(t, models.TrendInsufficient, result.Trend)
}

func TestStrengthIsBounded(t *testing.T) {
	points := make([]models.SwingPoint, 0, 40)
	for i := 0; i < 20; i++ {
		points = append(points,
			swingAt(i*4, float64(100+i), models.PointLow),
			swingAt(i*4+2, float64(110+i), models.PointHigh),
		)
	}

	result := NewDetector().ClassifyTrend(points)
	assert.Equal(t, models.TrendUp, result.Trend)
	assert.LessOrEqual(t, result.Strength, 30)
}
