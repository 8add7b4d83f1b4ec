package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algomatic/regime-backtest/pkg/types"
)

const sampleJSON = `{"candles": [
	{"timestamp": "2024-01-01T00:00:00+05:30", "open": 100, "high": 102, "low": 99, "close": 101, "volume": 5000},
	{"timestamp": "2024-01-02T00:00:00+05:30", "open": 101, "high": 104, "low": 100, "close": 103, "volume": 6000},
	{"timestamp": "2024-01-03", "open": 103, "high": 105, "low": 102, "close": 104, "volume": 5500}
]}`

const sampleCSV = `timestamp,open,high,low,close,volume
2024-01-01,100,102,99,101,5000
2024-01-02, 101,104,100,103,6000
`

func TestReadJSON(t *testing.T) {
	candles, err := ReadJSON(strings.NewReader(sampleJSON))
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 6000.0, candles[1].Volume)
	assert.True(t, candles[2].Timestamp.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, types.ValidateSeries(candles))
}

func TestReadJSON_BadTimestamp(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"candles": [{"timestamp": "soon", "open": 1}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candle 0")
}

func TestReadCSV(t *testing.T) {
	candles, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, 101.0, candles[1].Open)
	assert.Equal(t, 100.0, candles[1].Low)
}

func TestReadCSV_ReorderedColumns(t *testing.T) {
	in := "close,volume,timestamp,open,high,low,symbol\n101,5000,2024-01-01,100,102,99,TCS\n"
	candles, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, types.Candle{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      100, High: 102, Low: 99, Close: 101, Volume: 5000,
	}, candles[0])
}

func TestReadCSV_Errors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("timestamp,open,high,low,close\n"))
	assert.ErrorContains(t, err, `missing column "volume"`)

	_, err = ReadCSV(strings.NewReader("timestamp,open,high,low,close,volume\n2024-01-01,x,1,1,1,1\n"))
	assert.ErrorContains(t, err, "line 2 column open")
}

func TestReadCSV_NonFinite(t *testing.T) {
	in := "timestamp,open,high,low,close,volume\n" +
		"2024-01-01,100,101,99,100,5000\n" +
		"2024-01-02,NaN,NaN,NaN,NaN,100\n"
	_, err := ReadCSV(strings.NewReader(in))
	assert.ErrorIs(t, err, types.ErrNonFinite)
	assert.ErrorContains(t, err, "line 3 column open")

	in = "timestamp,open,high,low,close,volume\n2024-01-01,+Inf,+Inf,1,2,10\n"
	_, err = ReadCSV(strings.NewReader(in))
	assert.ErrorIs(t, err, types.ErrNonFinite)

	in = "timestamp,open,high,low,close,volume\n2024-01-01,1,2,1,2,NaN\n"
	_, err = ReadCSV(strings.NewReader(in))
	assert.ErrorContains(t, err, "column volume")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "RELIANCE.json")
	csvPath := filepath.Join(dir, "tcs.csv")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o644))
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	candles, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, candles, 3)

	candles, err = LoadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, candles, 2)

	_, err = LoadFile(filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	paths, names, err := Symbols(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS"}, names)
	assert.Equal(t, csvPath, paths["TCS"])
}

func TestFilterRange(t *testing.T) {
	base := time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC)
	candles := make([]types.Candle, 10)
	for i := range candles {
		candles[i] = types.Candle{Timestamp: base.AddDate(0, 0, i), Close: float64(i)}
	}

	// Bounds compare by date, so an intraday timestamp on the end date is kept.
	got := FilterRange(candles, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Len(t, got, 3)
	assert.Equal(t, 2.0, got[0].Close)
	assert.Equal(t, 4.0, got[2].Close)

	assert.Len(t, FilterRange(candles, time.Time{}, time.Time{}), 10)
	assert.Len(t, FilterRange(candles, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), time.Time{}), 2)
	assert.Empty(t, FilterRange(candles, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{}))
}
