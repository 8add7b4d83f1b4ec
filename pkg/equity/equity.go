// Package equity books closed trades against a running account.
package equity

import (
	"math"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// CostModel holds the per-trade transaction costs.
type CostModel struct {
	// Brokerage is a flat fee charged on entry and again on exit.
	Brokerage float64
	// STTRate is charged on the absolute gross P&L.
	STTRate float64
}

// Costs returns 2×brokerage + |gross|×STT.
func (m CostModel) Costs(gross float64) float64 {
	return 2*m.Brokerage + math.Abs(gross)*m.STTRate
}

// Fill is the raw outcome of a simulated trade before costs.
type Fill struct {
	Direction  types.Direction
	EntryPrice float64
	ExitPrice  float64
	Quantity   int
	// RiskAmount is the capital risked when the trade was sized.
	RiskAmount float64
}

// Booking is the P&L of one trade after costs.
type Booking struct {
	Gross     float64
	Costs     float64
	Net       float64
	RMultiple float64
}

// Tracker is the running account state of one backtest. It is owned by a
// single run and must not be shared between goroutines.
type Tracker struct {
	costs CostModel

	Initial     float64
	Equity      float64
	Peak        float64
	MaxDrawdown float64
	TotalR      float64
	Gross       float64
	TotalCosts  float64
	Net         float64
	Trades      int
	Wins        int
}

// NewTracker starts an account at the given capital.
func NewTracker(initial float64, costs CostModel) *Tracker {
	return &Tracker{
		costs:   costs,
		Initial: initial,
		Equity:  initial,
		Peak:    initial,
	}
}

// Record books a fill and updates equity, peak and drawdown.
func (t *Tracker) Record(f Fill) Booking {
	gross := f.Direction.Sign() * (f.ExitPrice - f.EntryPrice) * float64(f.Quantity)
	costs := t.costs.Costs(gross)
	net := gross - costs
	var r float64
	if f.RiskAmount > 0 {
		r = net / f.RiskAmount
	}

	t.Equity += net
	if t.Equity > t.Peak {
		t.Peak = t.Equity
	}
	if t.Peak > 0 {
		if dd := (t.Peak - t.Equity) / t.Peak; dd > t.MaxDrawdown {
			t.MaxDrawdown = dd
		}
	}

	t.Trades++
	if net > 0 {
		t.Wins++
	}
	t.TotalR += r
	t.Gross += gross
	t.TotalCosts += costs
	t.Net += net

	return Booking{Gross: gross, Costs: costs, Net: net, RMultiple: r}
}

// WinRate returns wins / trades, or 0 with no trades.
func (t *Tracker) WinRate() float64 {
	if t.Trades == 0 {
		return 0
	}
	return float64(t.Wins) / float64(t.Trades)
}

// AvgR returns the mean R-multiple, or 0 with no trades.
func (t *Tracker) AvgR() float64 {
	if t.Trades == 0 {
		return 0
	}
	return t.TotalR / float64(t.Trades)
}

// ReturnPct returns the total return on initial capital in percent.
func (t *Tracker) ReturnPct() float64 {
	if t.Initial == 0 {
		return 0
	}
	return (t.Equity - t.Initial) / t.Initial * 100
}
