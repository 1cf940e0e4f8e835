// Package backtest provides the bar-by-bar trade simulation engine and
// its pluggable strategy signal functions. The simulation is strictly
// sequential: every decision at a bar uses only that bar and earlier
// ones, and identical inputs replay to identical results.
package backtest

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"wavetrader/internal/analysis/pivots"
	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

// Params holds numeric strategy knobs keyed by name. Values outside a
// strategy's schema are rejected at optimizer/simulator entry.
type Params map[string]float64

// Get returns the named parameter or the default when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Config configures one simulation run.
type Config struct {
	Strategy       string
	Params         Params
	InitialBalance float64
	RiskPerTrade   float64 // fraction of balance risked per trade
	MaxPositions   int
}

// Validate checks the run configuration.
func (c Config) Validate() error {
	if c.InitialBalance <= 0 {
		return errors.NewValidationError("initial_balance", c.InitialBalance, "must be positive")
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return errors.NewValidationError("risk_per_trade", c.RiskPerTrade, "must be in (0, 1]")
	}
	if c.MaxPositions < 1 {
		return errors.NewValidationError("max_positions", c.MaxPositions, "must be >= 1")
	}
	return nil
}

// Result is the full outcome of one simulation run.
type Result struct {
	Trades       []models.Trade
	EquityCurve  []models.EquityPoint
	Report       Report
	FinalBalance float64
	DroppedBars  int
}

// Engine drives the simulation. Each run owns private state; the bar
// series is borrowed read-only.
type Engine struct {
	cfg      Config
	signal   SignalFunc
	detector *pivots.Detector
	log      zerolog.Logger
}

// NewEngine creates an engine for the configured strategy.
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	signal, err := StrategyFor(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		signal:   signal,
		detector: pivots.NewDetector(),
		log:      logger,
	}, nil
}

// openPosition is a Position with its live trailing state.
type openPosition struct {
	models.Position
	closed bool
}

// trendWindow bounds how far back the per-bar structure read looks.
const trendWindow = 120

// Run executes the simulation over the bars. Malformed bars are
// dropped up-front and counted. Processing order equals input order.
func (e *Engine) Run(ctx context.Context, bars []models.Bar) (*Result, error) {
	started := time.Now()

	clean, dropped := dropMalformed(bars)
	if dropped > 0 {
		e.log.Warn().Int("dropped", dropped).Msg("Malformed bars removed before simulation")
	}
	if len(clean) < 6 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "backtest")
	}

	balance := e.cfg.InitialBalance
	var open []*openPosition
	var trades []models.Trade
	equity := make([]models.EquityPoint, 0, len(clean))
	nextID := 1

	rsi, ma, atr := precomputeIndicators(clean, e.cfg.Params)

	start := minInt(10, len(clean)-5)

	for i := start; i < len(clean); i++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrJobCancelled, "backtest")
		}

		bar := clean[i]
		history := clean[:i+1]
		trend := e.trailingTrend(history)

		sctx := &SignalContext{
			Bars:  history,
			Index: i,
			RSI:   rsi[i],
			MA:    ma[i],
			ATR:   atr[i],
			Trend: trend,
		}

		// Entry first, so a position opened on this bar is managed
		// from the next bar onward.
		if len(open) < e.cfg.MaxPositions {
			sig := e.signal(sctx, e.cfg.Params)
			if sig.Action == ActionBuy || sig.Action == ActionSell {
				pos := e.openFromSignal(nextID, i, bar, sig, balance)
				open = append(open, pos)
				nextID++
			}
		}

		var remaining []*openPosition
		for _, pos := range open {
			reason, hit := e.closeCondition(pos, bar, trend)
			if !hit {
				remaining = append(remaining, pos)
				continue
			}
			trade, err := e.closePosition(pos, bar.Timestamp, bar.Close, reason)
			if err != nil {
				return nil, err
			}
			trades = append(trades, trade)
			balance += trade.PnL
		}
		open = remaining

		unrealized := unrealizedPnL(open, bar.Close)
		equity = append(equity, models.EquityPoint{
			Timestamp:     bar.Timestamp,
			Balance:       balance,
			UnrealizedPnL: unrealized,
			TotalEquity:   balance + unrealized,
		})
	}

	// Force-close whatever is still open at the final price.
	last := clean[len(clean)-1]
	for _, pos := range open {
		trade, err := e.closePosition(pos, last.Timestamp, last.Close, models.ExitEndOfData)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
		balance += trade.PnL
	}

	report := Analyze(trades, equity, e.cfg.InitialBalance)

	e.log.Info().
		Str("strategy", e.cfg.Strategy).
		Int("bars", len(clean)).
		Int("trades", len(trades)).
		Float64("final_balance", balance).
		Dur("duration", time.Since(started)).
		Msg("Backtest completed")

	return &Result{
		Trades:       trades,
		EquityCurve:  equity,
		Report:       report,
		FinalBalance: balance,
		DroppedBars:  dropped,
	}, nil
}

// openFromSignal sizes and opens a position. Quantity risks the
// configured fraction of balance against the stop distance, with a
// 0.01 lot floor.
func (e *Engine) openFromSignal(id, index int, bar models.Bar, sig StrategySignal, balance float64) *openPosition {
	stop := sig.StopLoss
	if stop == 0 {
		stop = bar.Close * 0.98
	}

	riskAmount := balance * e.cfg.RiskPerTrade
	quantity := 0.01
	if diff := math.Abs(bar.Close - stop); diff > 0 {
		quantity = math.Max(0.01, riskAmount/diff)
	}

	side := models.SideLong
	if sig.Action == ActionSell {
		side = models.SideShort
	}

	maxHold := time.Duration(e.cfg.Params.Get("max_hold_hours", 1)) * time.Hour
	if e.cfg.Strategy == StrategySwing {
		maxHold = time.Duration(e.cfg.Params.Get("swing_max_hold_hours", 120)) * time.Hour
	}

	return &openPosition{Position: models.Position{
		ID:         id,
		Side:       side,
		EntryIndex: index,
		EntryTime:  bar.Timestamp,
		EntryPrice: bar.Close,
		Quantity:   quantity,
		StopLoss:   stop,
		TakeProfit: sig.TakeProfit,
		MaxHold:    maxHold,
	}}
}

// closeCondition evaluates exit rules in fixed order: stop/target
// breach, trailing ratchet, holding-time limit, trend reversal.
func (e *Engine) closeCondition(pos *openPosition, bar models.Bar, trend models.TrendAnalysis) (models.ExitReason, bool) {
	price := bar.Close

	if pos.Side == models.SideLong {
		if pos.TrailingStop > 0 && price <= pos.TrailingStop && pos.TrailingStop > pos.StopLoss {
			return models.ExitTrailingStop, true
		}
		if pos.StopLoss > 0 && price <= pos.StopLoss {
			return models.ExitStop, true
		}
		if pos.TakeProfit > 0 && price >= pos.TakeProfit {
			return models.ExitTarget, true
		}
	} else {
		if pos.TrailingStop > 0 && price >= pos.TrailingStop && pos.TrailingStop < pos.StopLoss {
			return models.ExitTrailingStop, true
		}
		if pos.StopLoss > 0 && price >= pos.StopLoss {
			return models.ExitStop, true
		}
		if pos.TakeProfit > 0 && price <= pos.TakeProfit {
			return models.ExitTarget, true
		}
	}

	if e.cfg.Strategy == StrategySwing && e.cfg.Params.Get("use_trailing_stop", 1) != 0 {
		e.updateTrailingStop(pos, price)
	}

	if bar.Timestamp.Sub(pos.EntryTime) > pos.MaxHold {
		return models.ExitTimeLimit, true
	}

	// The structure read covers bars up to the current one only, so a
	// reversal takes effect from the bar it is detected on, never
	// retroactively.
	if pos.Side == models.SideLong && trend.Trend == models.TrendDown {
		return models.ExitTrendReversal, true
	}
	if pos.Side == models.SideShort && trend.Trend == models.TrendUp {
		return models.ExitTrendReversal, true
	}

	return "", false
}

// updateTrailingStop ratchets the trailing stop toward price; it only
// ever tightens.
func (e *Engine) updateTrailingStop(pos *openPosition, price float64) {
	distance := e.cfg.Params.Get("trailing_stop_distance", 0.005)

	if pos.Side == models.SideLong {
		candidate := price * (1 - distance)
		if candidate > pos.TrailingStop && candidate > pos.StopLoss {
			pos.TrailingStop = candidate
		}
	} else {
		candidate := price * (1 + distance)
		if (pos.TrailingStop == 0 || candidate < pos.TrailingStop) && candidate < pos.StopLoss {
			pos.TrailingStop = candidate
		}
	}
}

// closePosition realizes a position into a Trade. Closing twice is a
// programming error and fails loudly.
func (e *Engine) closePosition(pos *openPosition, at time.Time, price float64, reason models.ExitReason) (models.Trade, error) {
	if pos.closed {
		return models.Trade{}, errors.NewSimulationError(pos.EntryIndex, "position closed twice", errors.ErrPositionClosed)
	}
	pos.closed = true

	pnl := (price - pos.EntryPrice) * pos.Quantity
	if pos.Side == models.SideShort {
		pnl = (pos.EntryPrice - price) * pos.Quantity
	}

	return models.Trade{
		PositionID: pos.ID,
		Side:       pos.Side,
		EntryTime:  pos.EntryTime,
		ExitTime:   at,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Quantity:   pos.Quantity,
		PnL:        pnl,
		Reason:     reason,
	}, nil
}

// trailingTrend classifies structure over the most recent bars.
func (e *Engine) trailingTrend(history []models.Bar) models.TrendAnalysis {
	window := history
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	points := e.detector.DetectSwingPoints(window)
	return e.detector.ClassifyTrend(points)
}

func unrealizedPnL(open []*openPosition, price float64) float64 {
	var total float64
	for _, pos := range open {
		if pos.Side == models.SideLong {
			total += (price - pos.EntryPrice) * pos.Quantity
		} else {
			total += (pos.EntryPrice - price) * pos.Quantity
		}
	}
	return total
}

// dropMalformed filters bars violating OHLC sanity and counts them.
func dropMalformed(bars []models.Bar) ([]models.Bar, int) {
	clean := make([]models.Bar, 0, len(bars))
	dropped := 0
	for _, b := range bars {
		if !b.Valid() || math.IsNaN(b.Open) || math.IsNaN(b.High) || math.IsNaN(b.Low) || math.IsNaN(b.Close) {
			dropped++
			continue
		}
		clean = append(clean, b)
	}
	return clean, dropped
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
