package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"wavetrader/internal/jobs"
	"wavetrader/internal/models"
	"wavetrader/internal/optimize"
)

// SQLiteStore implements BarStore, HistoryStore, ResultStore and the
// job Recorder on a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Historical OHLCV bars
	CREATE TABLE IF NOT EXISTS bars (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);
	CREATE INDEX IF NOT EXISTS idx_bars_lookup ON bars(symbol, timeframe, timestamp);

	-- Asynchronous job lifecycle records
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		finished_at DATETIME
	);

	-- One row per evaluated optimization candidate
	CREATE TABLE IF NOT EXISTS optimization_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		parameters TEXT NOT NULL,
		score REAL NOT NULL,
		metrics TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_history_job ON optimization_history(job_id, iteration);

	-- Backtest run summaries
	CREATE TABLE IF NOT EXISTS backtest_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT,
		symbol TEXT NOT NULL,
		strategy TEXT NOT NULL,
		initial_balance REAL NOT NULL,
		final_balance REAL NOT NULL,
		total_trades INTEGER NOT NULL,
		win_rate REAL NOT NULL,
		profit_factor REAL,
		sharpe_ratio REAL,
		max_drawdown REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBars upserts a bar series in one transaction.
func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, timeframe models.Timeframe, bars []models.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO bars (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx, symbol, string(timeframe), b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume)
		if err != nil {
			return fmt.Errorf("failed to insert bar: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetBars returns bars within [from, to], ordered by timestamp.
func (s *SQLiteStore) GetBars(ctx context.Context, symbol string, timeframe models.Timeframe, from, to time.Time) ([]models.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM bars
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, string(timeframe), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []models.Bar
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars: %w", err)
	}

	return bars, nil
}

// BarsFreshness returns the newest stored timestamp for the series,
// or the zero time when nothing is stored.
func (s *SQLiteStore) BarsFreshness(ctx context.Context, symbol string, timeframe models.Timeframe) (time.Time, error) {
	var timestamp sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM bars WHERE symbol = ? AND timeframe = ?
	`, symbol, string(timeframe)).Scan(&timestamp)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("failed to get bars freshness: %w", err)
	}
	if !timestamp.Valid {
		return time.Time{}, nil
	}
	return timestamp.Time, nil
}

// RecordJob upserts a job lifecycle snapshot.
func (s *SQLiteStore) RecordJob(ctx context.Context, job jobs.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, status, error, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, job.ID, job.Kind, string(job.Status), job.Error,
		job.CreatedAt, nullableTime(job.StartedAt), nullableTime(job.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to record job: %w", err)
	}
	return nil
}

// GetJob loads one job snapshot.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (jobs.Job, error) {
	var job jobs.Job
	var status string
	var errText sql.NullString
	var started, finished sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, status, error, created_at, started_at, finished_at
		FROM jobs WHERE id = ?
	`, id).Scan(&job.ID, &job.Kind, &status, &errText, &job.CreatedAt, &started, &finished)
	if err == sql.ErrNoRows {
		return jobs.Job{}, fmt.Errorf("job %s: not found", id)
	}
	if err != nil {
		return jobs.Job{}, fmt.Errorf("failed to load job: %w", err)
	}

	job.Status = models.JobStatus(status)
	job.Error = errText.String
	if started.Valid {
		job.StartedAt = started.Time
	}
	if finished.Valid {
		job.FinishedAt = finished.Time
	}
	return job, nil
}

// SaveCandidate appends one optimization evaluation. Parameters and
// metrics are stored as JSON.
func (s *SQLiteStore) SaveCandidate(ctx context.Context, jobID string, candidate models.OptimizationCandidate) error {
	params, err := json.Marshal(candidate.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	metrics, err := json.Marshal(candidate.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode metrics: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimization_history (job_id, iteration, parameters, score, metrics)
		VALUES (?, ?, ?, ?, ?)
	`, jobID, candidate.Iteration, string(params), candidate.Score, string(metrics))
	if err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	return nil
}

// GetHistory returns all evaluations for a job in iteration order.
func (s *SQLiteStore) GetHistory(ctx context.Context, jobID string) ([]models.OptimizationCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, parameters, score, metrics
		FROM optimization_history
		WHERE job_id = ?
		ORDER BY iteration ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var history []models.OptimizationCandidate
	for rows.Next() {
		var c models.OptimizationCandidate
		var params, metrics string
		if err := rows.Scan(&c.Iteration, &params, &c.Score, &metrics); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &c.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
		if metrics != "" && metrics != "null" {
			if err := json.Unmarshal([]byte(metrics), &c.Metrics); err != nil {
				return nil, fmt.Errorf("failed to decode metrics: %w", err)
			}
		}
		history = append(history, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}

// HistorySink adapts the store to the optimizer's per-job sink.
func (s *SQLiteStore) HistorySink(jobID string) optimize.HistorySink {
	return &historySink{store: s, jobID: jobID}
}

type historySink struct {
	store *SQLiteStore
	jobID string
}

func (h *historySink) Record(ctx context.Context, candidate models.OptimizationCandidate) error {
	return h.store.SaveCandidate(ctx, h.jobID, candidate)
}

// SaveResult persists one backtest summary.
func (s *SQLiteStore) SaveResult(ctx context.Context, result BacktestRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backtest_results
			(job_id, symbol, strategy, initial_balance, final_balance,
			 total_trades, win_rate, profit_factor, sharpe_ratio, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.JobID, result.Symbol, result.Strategy, result.InitialBalance, result.FinalBalance,
		result.TotalTrades, result.WinRate, nullableFloat(result.ProfitFactor),
		nullableFloat(result.SharpeRatio), result.MaxDrawdown)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResults returns the most recent summaries for a symbol.
func (s *SQLiteStore) GetResults(ctx context.Context, symbol string, limit int) ([]BacktestRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, symbol, strategy, initial_balance, final_balance,
		       total_trades, win_rate, profit_factor, sharpe_ratio, max_drawdown, created_at
		FROM backtest_results
		WHERE symbol = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []BacktestRecord
	for rows.Next() {
		var r BacktestRecord
		var jobID sql.NullString
		var pf, sharpe sql.NullFloat64
		if err := rows.Scan(&jobID, &r.Symbol, &r.Strategy, &r.InitialBalance, &r.FinalBalance,
			&r.TotalTrades, &r.WinRate, &pf, &sharpe, &r.MaxDrawdown, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.JobID = jobID.String
		if pf.Valid {
			v := pf.Float64
			r.ProfitFactor = &v
		}
		if sharpe.Valid {
			v := sharpe.Float64
			r.SharpeRatio = &v
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}

	return results, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
