// Package models provides domain models for chart structure analysis,
// backtesting and parameter optimization.
package models

import (
	"time"
)

// Timeframe identifies the bar interval of a series.
type Timeframe string

const (
	TimeframeM1  Timeframe = "M1"
	TimeframeM5  Timeframe = "M5"
	TimeframeM15 Timeframe = "M15"
	TimeframeH1  Timeframe = "H1"
	TimeframeH4  Timeframe = "H4"
	TimeframeD1  Timeframe = "D1"
)

// Duration returns the bar interval as a time.Duration.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TimeframeM1:
		return time.Minute
	case TimeframeM5:
		return 5 * time.Minute
	case TimeframeM15:
		return 15 * time.Minute
	case TimeframeH1:
		return time.Hour
	case TimeframeH4:
		return 4 * time.Hour
	case TimeframeD1:
		return 24 * time.Hour
	}
	return 0
}

// Bar represents OHLCV data for one time period.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Valid reports whether the bar satisfies basic OHLC sanity:
// all prices positive, high is the maximum and low the minimum.
func (b Bar) Valid() bool {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return false
	}
	if b.Low > b.Open || b.Low > b.Close {
		return false
	}
	return true
}

// PointKind distinguishes swing highs from swing lows.
type PointKind string

const (
	PointHigh PointKind = "HIGH"
	PointLow  PointKind = "LOW"
)

// SwingPoint is a confirmed local extremum in a bar series.
type SwingPoint struct {
	Index     int
	Timestamp time.Time
	Price     float64
	Kind      PointKind
}

// Trend classifies the market structure of a series.
type Trend string

const (
	TrendUp           Trend = "UPTREND"
	TrendDown         Trend = "DOWNTREND"
	TrendSideways     Trend = "SIDEWAYS"
	TrendInsufficient Trend = "INSUFFICIENT_DATA"
)

// TrendAnalysis is the result of Dow-theory structure classification.
type TrendAnalysis struct {
	Trend        Trend
	Strength     int // 0-30
	HigherHighs  int
	HigherLows   int
	LowerHighs   int
	LowerLows    int
	SwingPoints  []SwingPoint
}

// ZigZagPoint is a pivot emitted by the zigzag reversal filter.
// Points strictly alternate between highs and lows.
type ZigZagPoint struct {
	Index     int
	Timestamp time.Time
	Price     float64
	Kind      PointKind
}

// WaveLabel names a position within an Elliott wave pattern.
type WaveLabel string

const (
	Wave1 WaveLabel = "1"
	Wave2 WaveLabel = "2"
	Wave3 WaveLabel = "3"
	Wave4 WaveLabel = "4"
	Wave5 WaveLabel = "5"
	WaveA WaveLabel = "A"
	WaveB WaveLabel = "B"
	WaveC WaveLabel = "C"
)

// PatternKind distinguishes impulse from corrective wave patterns.
type PatternKind string

const (
	PatternImpulse    PatternKind = "IMPULSE"
	PatternCorrective PatternKind = "CORRECTIVE"
)

// WavePattern is one labeled wave inside a detected Elliott pattern.
type WavePattern struct {
	Label      WaveLabel
	Kind       PatternKind
	Direction  Trend // TrendUp or TrendDown
	StartIndex int
	EndIndex   int
	StartPrice float64
	EndPrice   float64
	Confidence float64            // 0-1
	FibRatios  map[string]float64 // ratio name -> measured value
}

// WavePosition describes where price currently sits in the wave count.
type WavePosition struct {
	Label      WaveLabel
	Confidence float64
	Score      float64 // 0-40 contribution to the composite score
	NextTarget *float64
}

// ScoreBreakdown is the component-wise composite score of a setup.
type ScoreBreakdown struct {
	TrendStrength     float64 // 0-30
	ElliottWave       float64 // 0-40
	TechnicalAccuracy float64 // 0-20
	MarketEnvironment float64 // 0-10
	Total             float64 // 0-100
}

// SignalStrength buckets a composite score.
type SignalStrength string

const (
	SignalStrong   SignalStrength = "STRONG"
	SignalModerate SignalStrength = "MODERATE"
	SignalWeak     SignalStrength = "WEAK"
	SignalHold     SignalStrength = "HOLD"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Signal is an actionable (or advisory) trade recommendation.
type Signal struct {
	Timestamp  time.Time
	Side       Side
	Strength   SignalStrength
	Score      ScoreBreakdown
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Reason     string
}

// Actionable reports whether the signal strength warrants an entry.
func (s Signal) Actionable() bool {
	return s.Strength == SignalStrong || s.Strength == SignalModerate
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStop          ExitReason = "CLOSED_STOP"
	ExitTarget        ExitReason = "CLOSED_TARGET"
	ExitTimeLimit     ExitReason = "CLOSED_TIME_LIMIT"
	ExitTrendReversal ExitReason = "CLOSED_TREND_REVERSAL"
	ExitTrailingStop  ExitReason = "CLOSED_TRAILING_STOP"
	ExitEndOfData     ExitReason = "CLOSED_AT_END"
)

// Position is an open simulated position.
type Position struct {
	ID           int
	Side         Side
	EntryIndex   int
	EntryTime    time.Time
	EntryPrice   float64
	Quantity     float64
	StopLoss     float64
	TakeProfit   float64
	TrailingStop float64 // 0 while trailing has not armed
	MaxHold      time.Duration
}

// Trade is a closed position with realized outcome.
type Trade struct {
	PositionID int
	Side       Side
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   float64
	PnL        float64
	Reason     ExitReason
}

// EquityPoint samples account state after one bar of simulation.
type EquityPoint struct {
	Timestamp     time.Time
	Balance       float64
	UnrealizedPnL float64
	TotalEquity   float64
}

// OptimizationCandidate is one evaluated parameter set.
type OptimizationCandidate struct {
	Iteration  int
	Parameters map[string]float64
	Score      float64
	Metrics    map[string]float64
}

// JobStatus tracks the lifecycle of an asynchronous run.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
	JobCancelled JobStatus = "CANCELLED"
)
