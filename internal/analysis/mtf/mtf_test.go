package mtf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavetrader/internal/analysis/pivots"
	"wavetrader/internal/models"
)

func hourlyBars(n int, startPrice float64) []models.Bar {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		price := startPrice + float64(i)
		bars[i] = models.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    100,
		}
	}
	return bars
}

func TestResampleAggregatesBuckets(t *testing.T) {
	bars := hourlyBars(8, 100)

	resampled := Resample(bars, models.TimeframeH4)
	require.Len(t, resampled, 2)

	first := resampled[0]
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, 100.0, first.Open)       // first open in the bucket
	assert.Equal(t, 104.0, first.High)       // max high (103 + 1)
	assert.Equal(t, 99.0, first.Low)         // min low (100 - 1)
	assert.Equal(t, 103.5, first.Close)      // last close (103 + 0.5)
	assert.Equal(t, int64(400), first.Volume)

	second := resampled[1]
	assert.Equal(t, time.Date(2024, 3, 4, 4, 0, 0, 0, time.UTC), second.Timestamp)
	assert.Equal(t, 104.0, second.Open)
	assert.Equal(t, int64(400), second.Volume)
}

func TestResampleEmptyAndUnknown(t *testing.T) {
	assert.Nil(t, Resample(nil, models.TimeframeH4))
	assert.Nil(t, Resample(hourlyBars(4, 100), models.Timeframe("W1")))
}

func TestBuildViewsSkipsFasterFrames(t *testing.T) {
	analyzer := NewAnalyzer(pivots.NewDetector())
	bars := hourlyBars(48, 100)

	views := analyzer.BuildViews(bars, models.TimeframeH1,
		[]models.Timeframe{models.TimeframeM15, models.TimeframeH4, models.TimeframeD1})

	// M15 is faster than the base and must be dropped.
	require.Len(t, views, 3)
	assert.Equal(t, models.TimeframeH1, views[0].Timeframe)
	assert.Equal(t, models.TimeframeH4, views[1].Timeframe)
	assert.Equal(t, models.TimeframeD1, views[2].Timeframe)

	assert.Len(t, views[0].Bars, 48)
	assert.Len(t, views[1].Bars, 12)
	assert.Len(t, views[2].Bars, 2)
}

func viewWithTrend(tf models.Timeframe, trend models.Trend) View {
	return View{Timeframe: tf, Trend: models.TrendAnalysis{Trend: trend}}
}

func TestSummarize(t *testing.T) {
	views := []View{
		viewWithTrend(models.TimeframeH1, models.TrendUp),
		viewWithTrend(models.TimeframeH4, models.TrendUp),
		viewWithTrend(models.TimeframeD1, models.TrendUp),
	}

	c := Summarize(views)
	assert.Equal(t, 3, c.Bullish)
	assert.Equal(t, models.TrendUp, c.Trend)
	assert.True(t, c.Aligned)
}

func TestSummarizeMixed(t *testing.T) {
	views := []View{
		viewWithTrend(models.TimeframeH1, models.TrendUp),
		viewWithTrend(models.TimeframeH4, models.TrendDown),
		viewWithTrend(models.TimeframeD1, models.TrendSideways),
	}

	c := Summarize(views)
	assert.Equal(t, 1, c.Bullish)
	assert.Equal(t, 1, c.Bearish)
	assert.Equal(t, 1, c.Neutral)
	assert.Equal(t, models.TrendSideways, c.Trend)
	assert.False(t, c.Aligned)
}

func TestSlowest(t *testing.T) {
	assert.Nil(t, Slowest(nil))

	views := []View{
		viewWithTrend(models.TimeframeH4, models.TrendUp),
		viewWithTrend(models.TimeframeD1, models.TrendDown),
		viewWithTrend(models.TimeframeH1, models.TrendUp),
	}
	slowest := Slowest(views)
	require.NotNil(t, slowest)
	assert.Equal(t, models.TimeframeD1, slowest.Timeframe)
}
