// Package loader reads candle series from JSON and CSV files.
//
// JSON files hold {"candles": [{"timestamp", "open", "high", "low", "close",
// "volume"}, ...]}. CSV files carry a header row with the same six columns.
package loader

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// ErrUnknownFormat is returned for files that are neither .json nor .csv.
var ErrUnknownFormat = errors.New("unknown candle file format")

var csvColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

type candleFile struct {
	Candles []candlePayload `json:"candles"`
}

type candlePayload struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// LoadFile reads a candle file, choosing the decoder by extension.
func LoadFile(path string) ([]types.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening candle file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ReadJSON(f)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// ReadJSON decodes the {"candles": [...]} document.
func ReadJSON(r io.Reader) ([]types.Candle, error) {
	var doc candleFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding candle JSON: %w", err)
	}
	out := make([]types.Candle, len(doc.Candles))
	for i, c := range doc.Candles {
		ts, err := types.ParseTimestamp(c.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		out[i] = types.Candle{
			Timestamp: ts,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
	}
	return out, nil
}

// ReadCSV decodes a headed CSV. Column order follows the header, so extra
// columns are ignored and the six required ones may appear in any order.
func ReadCSV(r io.Reader) ([]types.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("CSV header missing column %q", col)
		}
	}

	var out []types.Candle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", line, err)
		}

		ts, err := types.ParseTimestamp(rec[idx["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
		var vals [5]float64
		for j, col := range csvColumns[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("CSV line %d column %s: %w", line, col, err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("CSV line %d column %s: %w", line, col, types.ErrNonFinite)
			}
			vals[j] = v
		}
		out = append(out, types.Candle{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return out, nil
}

// FilterRange keeps candles whose calendar date lies in [start, end].
// Zero bounds are open.
func FilterRange(candles []types.Candle, start, end time.Time) []types.Candle {
	from, to := dateKey(start), dateKey(end)
	out := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		d := dateKey(c.Timestamp)
		if !start.IsZero() && d < from {
			continue
		}
		if !end.IsZero() && d > to {
			continue
		}
		out = append(out, c)
	}
	return out
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Symbols lists the <SYMBOL>.json and <SYMBOL>.csv files in dir, sorted.
func Symbols(dir string) (map[string]string, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	paths := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".csv" {
			continue
		}
		sym := strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if _, dup := paths[sym]; dup {
			continue
		}
		paths[sym] = filepath.Join(dir, e.Name())
	}
	names := make([]string, 0, len(paths))
	for s := range paths {
		names = append(names, s)
	}
	sort.Strings(names)
	return paths, names, nil
}
