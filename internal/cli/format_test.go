package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavetrader/internal/models"
	"wavetrader/internal/optimize"
)

func TestParseTimeframe(t *testing.T) {
	tf, err := parseTimeframe("h1")
	require.NoError(t, err)
	assert.Equal(t, models.TimeframeH1, tf)

	tf, err = parseTimeframe(" D1 ")
	require.NoError(t, err)
	assert.Equal(t, models.TimeframeD1, tf)

	_, err = parseTimeframe("W1")
	assert.Error(t, err)
}

func TestParseTimeFlag(t *testing.T) {
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := parseTimeFlag("", fallback)
	require.NoError(t, err)
	assert.True(t, got.Equal(fallback))

	got, err = parseTimeFlag("2024-03-04", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTimeFlag("2024-03-04 09:30:00", fallback)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())

	_, err = parseTimeFlag("yesterday", fallback)
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"entry_threshold=55", "rsi_period=14"})
	require.NoError(t, err)
	assert.Equal(t, 55.0, params["entry_threshold"])
	assert.Equal(t, 14.0, params["rsi_period"])

	_, err = parseParams([]string{"entry_threshold"})
	assert.Error(t, err)

	_, err = parseParams([]string{"entry_threshold=high"})
	assert.Error(t, err)
}

func TestParseSchema(t *testing.T) {
	schema, err := parseSchema([]string{
		"entry_threshold:float:30:80:10",
		"rsi_period:int:7:21",
		"use_trailing_stop:choice:0,1",
	})
	require.NoError(t, err)
	require.Len(t, schema, 3)

	assert.Equal(t, optimize.KindFloat, schema[0].Kind)
	assert.Equal(t, 30.0, schema[0].Min)
	assert.Equal(t, 80.0, schema[0].Max)
	assert.Equal(t, 10.0, schema[0].Step)

	assert.Equal(t, optimize.KindInt, schema[1].Kind)
	assert.Equal(t, 0.0, schema[1].Step)

	assert.Equal(t, optimize.KindChoice, schema[2].Kind)
	assert.Equal(t, []float64{0, 1}, schema[2].Choices)

	require.NoError(t, schema.Validate())
}

func TestParseSchemaRejectsMalformedSpecs(t *testing.T) {
	cases := []string{
		"entry_threshold",
		"entry_threshold:float:30",
		"entry_threshold:float:lo:80",
		"use_trailing_stop:choice:yes,no",
	}
	for _, spec := range cases {
		_, err := parseSchema([]string{spec})
		assert.Error(t, err, spec)
	}
}

func TestTableRendersAlignedColumns(t *testing.T) {
	output := &Output{writer: &stringWriter{}, colorEnabled: false}
	table := NewTable(output, "ID", "Status")
	table.AddRow("backtest-1", "COMPLETED")
	table.AddRow("opt-2", "RUNNING")
	table.Render()

	lines := output.writer.(*stringWriter).lines()
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[2], "backtest-1")
	// Both data rows pad the first column to the same width.
	assert.Equal(t, strings.Index(lines[2], "COMPLETED"), strings.Index(lines[3], "RUNNING"))
}

type stringWriter struct {
	data []byte
}

func (w *stringWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *stringWriter) lines() []string {
	return strings.Split(strings.TrimRight(string(w.data), "\n"), "\n")
}
