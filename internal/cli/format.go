package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wavetrader/internal/backtest"
	"wavetrader/internal/errors"
	"wavetrader/internal/models"
	"wavetrader/internal/optimize"
	"wavetrader/internal/store"
)

// parseTimeframe validates a timeframe flag value.
func parseTimeframe(value string) (models.Timeframe, error) {
	tf := models.Timeframe(strings.ToUpper(strings.TrimSpace(value)))
	if tf.Duration() == 0 {
		return "", fmt.Errorf("unknown timeframe %q (use M1, M5, M15, H1, H4 or D1)", value)
	}
	return tf, nil
}

// parseTimeFlag parses an optional date or datetime flag.
func parseTimeFlag(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use YYYY-MM-DD)", value)
}

// parseParams parses repeated name=value strategy parameter overrides.
func parseParams(values []string) (backtest.Params, error) {
	params := backtest.Params{}
	for _, pair := range values {
		name, raw, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid parameter %q (use name=value)", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for parameter %q: %w", name, err)
		}
		params[strings.TrimSpace(name)] = value
	}
	return params, nil
}

// parseSchema parses repeated tunable-parameter declarations.
// Forms: name:int:min:max[:step], name:float:min:max[:step] and
// name:choice:v1,v2,...
func parseSchema(values []string) (optimize.Schema, error) {
	schema := make(optimize.Schema, 0, len(values))
	for _, spec := range values {
		parts := strings.Split(spec, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid parameter spec %q", spec)
		}

		name := strings.TrimSpace(parts[0])
		kind := optimize.Kind(strings.TrimSpace(parts[1]))

		if kind == optimize.KindChoice {
			raw := strings.Split(parts[2], ",")
			choices := make([]float64, 0, len(raw))
			for _, c := range raw {
				v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
				if err != nil {
					return nil, fmt.Errorf("invalid choice in %q: %w", spec, err)
				}
				choices = append(choices, v)
			}
			schema = append(schema, optimize.ParamSpec{Name: name, Kind: kind, Choices: choices})
			continue
		}

		if len(parts) < 4 {
			return nil, fmt.Errorf("invalid parameter spec %q (need min and max)", spec)
		}
		min, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid min in %q: %w", spec, err)
		}
		max, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid max in %q: %w", spec, err)
		}
		var step float64
		if len(parts) > 4 {
			step, err = strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid step in %q: %w", spec, err)
			}
		}

		schema = append(schema, optimize.ParamSpec{Name: name, Kind: kind, Min: min, Max: max, Step: step})
	}
	return schema, nil
}

// barSource describes how a command loaded its bar series.
type barSource struct {
	Bars    []models.Bar
	Symbol  string
	Dropped int
}

// loadBars loads bars from a CSV file or the local store. Exactly one
// of csvPath and symbol must be set.
func loadBars(ctx context.Context, st *store.SQLiteStore, csvPath, symbol, timeframe, from, to string) (*barSource, error) {
	if csvPath != "" {
		result, err := store.ImportCSV(csvPath)
		if err != nil {
			return nil, err
		}
		name := symbol
		if name == "" {
			name = csvPath
		}
		return &barSource{Bars: result.Bars, Symbol: name, Dropped: result.Dropped}, nil
	}

	if symbol == "" {
		return nil, fmt.Errorf("either --csv or --symbol is required")
	}
	if st == nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, "store unavailable")
	}

	tf, err := parseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	fromTime, err := parseTimeFlag(from, time.Time{})
	if err != nil {
		return nil, err
	}
	toTime, err := parseTimeFlag(to, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	bars, err := st.GetBars(ctx, symbol, tf, fromTime, toTime)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, errors.NewDataError("sqlite", symbol, "no bars in range", 0, errors.ErrDataNotFound)
	}

	return &barSource{Bars: bars, Symbol: symbol}, nil
}

// formatDuration renders a duration compactly for tables.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
