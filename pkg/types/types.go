// Package types defines the core data structures shared by the backtest packages.
//
//   - Candle = one OHLCV row of the input series
//   - Direction / Trend = trade side and detected trend label
//   - ClosedTrade = the immutable result of a simulated trade
package types

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV candle.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Closes extracts the close prices of a candle slice in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Direction represents trade direction.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Sign returns +1 for Long and -1 for Short.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// Trend is the trend label produced by the EMA trend detector.
type Trend string

const (
	TrendUp      Trend = "UP"
	TrendDown    Trend = "DOWN"
	TrendNeutral Trend = "NEUTRAL"
)

// Direction maps a trend to the trade direction it implies.
// ok is false for TrendNeutral.
func (t Trend) Direction() (Direction, bool) {
	switch t {
	case TrendUp:
		return Long, true
	case TrendDown:
		return Short, true
	default:
		return "", false
	}
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	// ExitTrailingStop means a candle breached the trailing stop.
	ExitTrailingStop ExitReason = "trailing_stop"
	// ExitHorizon means the scan horizon elapsed without a breach and the
	// position was marked out at the last scanned close.
	ExitHorizon ExitReason = "horizon"
	// ExitEndOfData means the series ended with the position still open and
	// it was force-closed at the final close.
	ExitEndOfData ExitReason = "end_of_data"
)

// Forced reports whether the exit was not triggered by a stop.
func (r ExitReason) Forced() bool {
	return r != ExitTrailingStop
}

// ClosedTrade represents a completed simulated trade.
type ClosedTrade struct {
	Direction   Direction  `json:"direction"`
	Regime      string     `json:"regime"`
	EntryIndex  int        `json:"entry_index"`
	ExitIndex   int        `json:"exit_index"`
	EntryTime   time.Time  `json:"entry_time"`
	ExitTime    time.Time  `json:"exit_time"`
	EntryPrice  float64    `json:"entry_price"`
	ExitPrice   float64    `json:"exit_price"`
	InitialStop float64    `json:"initial_stop"`
	FinalStop   float64    `json:"final_stop"`
	Quantity    int        `json:"quantity"`
	RiskAmount  float64    `json:"risk_amount"`
	GrossPnL    float64    `json:"gross_pnl"`
	Costs       float64    `json:"costs"`
	NetPnL      float64    `json:"net_pnl"`
	RMultiple   float64    `json:"r_multiple"`
	ExitReason  ExitReason `json:"exit_reason"`
	BarsHeld    int        `json:"bars_held"`
	MaxProfit   float64    `json:"max_profit_pct"`
	MaxAdverse  float64    `json:"max_adverse_pct"`
	PnLStd      float64    `json:"pnl_std"`
	EquityAfter float64    `json:"equity_after"`
}

// Win reports whether the trade closed with a positive net result.
func (t ClosedTrade) Win() bool {
	return t.NetPnL > 0
}

// String returns a human-readable representation of the trade.
func (t ClosedTrade) String() string {
	return fmt.Sprintf(
		"%s %s entry=%.4f exit=%.4f qty=%d net=%.2f R=%.2f bars=%d reason=%s",
		t.Direction, t.EntryTime.Format("2006-01-02 15:04"),
		t.EntryPrice, t.ExitPrice, t.Quantity, t.NetPnL, t.RMultiple, t.BarsHeld, t.ExitReason,
	)
}
