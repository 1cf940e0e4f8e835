package store

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"wavetrader/internal/errors"
	"wavetrader/internal/models"
)

// csvRow is one raw CSV record. Fields stay strings so a single
// malformed cell drops only its row, not the whole file.
type csvRow struct {
	Timestamp string `csv:"time"`
	Open      string `csv:"open"`
	High      string `csv:"high"`
	Low       string `csv:"low"`
	Close     string `csv:"close"`
	Volume    string `csv:"volume"`
}

// Timestamp layouts produced by common exporters, including the MT5
// dot-separated form.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006.01.02 15:04:05",
	"2006.01.02 15:04",
	"2006-01-02",
}

// ImportResult reports what a CSV import produced.
type ImportResult struct {
	Bars    []models.Bar
	Dropped int
}

// ImportCSV reads an OHLCV file into bars sorted by timestamp.
// Malformed rows (bad timestamps, non-numeric prices, OHLC
// violations) are dropped and counted; a file with no valid rows is
// an error.
func ImportCSV(path string) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError("csv", path, "cannot open file", 0, err)
	}
	defer file.Close()

	var rows []*csvRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, errors.NewDataError("csv", path, "cannot parse file", 0, err)
	}

	bars := make([]models.Bar, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		bar, ok := parseRow(row)
		if !ok {
			dropped++
			continue
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, errors.NewDataError("csv", path, "no valid rows", dropped, errors.ErrDataNotFound)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	return &ImportResult{Bars: bars, Dropped: dropped}, nil
}

func parseRow(row *csvRow) (models.Bar, bool) {
	ts, ok := parseTimestamp(row.Timestamp)
	if !ok {
		return models.Bar{}, false
	}

	open, err1 := strconv.ParseFloat(strings.TrimSpace(row.Open), 64)
	high, err2 := strconv.ParseFloat(strings.TrimSpace(row.High), 64)
	low, err3 := strconv.ParseFloat(strings.TrimSpace(row.Low), 64)
	closePrice, err4 := strconv.ParseFloat(strings.TrimSpace(row.Close), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return models.Bar{}, false
	}

	// Missing volume is tolerated; a garbled one is not.
	var volume int64
	if v := strings.TrimSpace(row.Volume); v != "" {
		volume, err1 = strconv.ParseInt(v, 10, 64)
		if err1 != nil {
			return models.Bar{}, false
		}
	}

	bar := models.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
	}
	if !bar.Valid() {
		return models.Bar{}, false
	}
	return bar, true
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range csvTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
