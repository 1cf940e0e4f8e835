// Package store provides persistence for historical bars, job records
// and optimization history. The analysis and simulation core never
// touches storage directly; callers load bars up front and hand the
// core plain slices.
package store

import (
	"context"
	"time"

	"wavetrader/internal/models"
)

// BarStore persists historical bar series keyed by symbol and
// timeframe.
type BarStore interface {
	SaveBars(ctx context.Context, symbol string, timeframe models.Timeframe, bars []models.Bar) error
	GetBars(ctx context.Context, symbol string, timeframe models.Timeframe, from, to time.Time) ([]models.Bar, error)
	BarsFreshness(ctx context.Context, symbol string, timeframe models.Timeframe) (time.Time, error)
}

// HistoryStore persists optimization candidates per job.
type HistoryStore interface {
	SaveCandidate(ctx context.Context, jobID string, candidate models.OptimizationCandidate) error
	GetHistory(ctx context.Context, jobID string) ([]models.OptimizationCandidate, error)
}

// ResultStore persists backtest summaries for later comparison.
type ResultStore interface {
	SaveResult(ctx context.Context, result BacktestRecord) error
	GetResults(ctx context.Context, symbol string, limit int) ([]BacktestRecord, error)
}

// BacktestRecord is the persisted summary of one run.
type BacktestRecord struct {
	JobID          string
	Symbol         string
	Strategy       string
	InitialBalance float64
	FinalBalance   float64
	TotalTrades    int
	WinRate        float64
	ProfitFactor   *float64
	SharpeRatio    *float64
	MaxDrawdown    float64
	CreatedAt      time.Time
}
