// Package risk sizes positions from a stop distance and an equity risk budget.
package risk

import "math"

// Reason names why a candidate trade could not be sized.
type Reason string

const (
	// OK means the trade was sized.
	OK Reason = ""
	// RejectRisk means the entry and stop coincide (or are not finite).
	RejectRisk Reason = "risk"
	// RejectQuantity means the budget does not cover a single unit.
	RejectQuantity Reason = "quantity"
)

// Size is the result of sizing one trade.
type Size struct {
	// PerUnit is |entry - stop|.
	PerUnit float64
	// Amount is the capital put at risk: equity × risk fraction, or
	// Quantity × PerUnit when the quantity was capped.
	Amount   float64
	Quantity int
}

// Sizer converts stop distances into whole-unit quantities.
type Sizer struct {
	// RiskPerTrade is the fraction of current equity risked on one trade.
	RiskPerTrade float64
}

// Size computes floor(equity × RiskPerTrade / |entry - stop|). A zero or
// undefined per-unit risk, or a quantity below one, is a rejection.
// Quantities are capped at math.MaxInt32.
func (s Sizer) Size(entry, stop, equity float64) (Size, Reason) {
	perUnit := math.Abs(entry - stop)
	if perUnit <= 0 || math.IsNaN(perUnit) || math.IsInf(perUnit, 0) {
		return Size{}, RejectRisk
	}
	amount := equity * s.RiskPerTrade
	qty := math.Floor(amount / perUnit)
	if qty < 1 || math.IsNaN(qty) {
		return Size{PerUnit: perUnit, Amount: amount}, RejectQuantity
	}
	if qty > math.MaxInt32 {
		// Capped positions risk only what the capped quantity covers.
		qty = math.MaxInt32
		amount = qty * perUnit
	}
	return Size{PerUnit: perUnit, Amount: amount, Quantity: int(qty)}, OK
}
