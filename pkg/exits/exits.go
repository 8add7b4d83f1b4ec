// Package exits simulates the life of one open position.
//
// A position starts at its initial stop and walks forward candle by candle.
// The trailing stop only ever moves toward the trade's favourable side; the
// position closes when a candle touches it, or is marked out at a close when
// the scan horizon or the series runs out.
package exits

import (
	"math"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// Policy configures the trailing stop and the forward scan.
type Policy struct {
	// TrailMult scales the entry ATR into the trailing distance.
	TrailMult float64
	// Horizon bounds the number of candles scanned after entry.
	// Zero or negative scans to the end of the series.
	Horizon int
	// Immediate ratchets the stop from the first candle. Otherwise the stop
	// only starts trailing once price clears entry by the trailing distance.
	Immediate bool
}

// Position is an open trade as handed to the simulator.
type Position struct {
	Direction   types.Direction
	EntryIndex  int
	EntryPrice  float64
	InitialStop float64
	Quantity    int
	// ATR at entry.
	ATR float64
	// Slip is the absolute slippage charged on exit, against the trader.
	Slip float64
}

// ExitManager tracks the trailing stop and excursions of one position.
// Call Check once per candle after entry.
type ExitManager struct {
	pos       Position
	policy    Policy
	trailDist float64
	stop      float64

	// Tracking
	BarsHeld   int
	BestPrice  float64
	WorstPrice float64
	barPnLs    []float64
}

// NewExitManager creates an ExitManager for a freshly opened position.
func NewExitManager(pos Position, policy Policy) *ExitManager {
	return &ExitManager{
		pos:        pos,
		policy:     policy,
		trailDist:  pos.ATR * policy.TrailMult,
		stop:       pos.InitialStop,
		BestPrice:  pos.EntryPrice,
		WorstPrice: pos.EntryPrice,
		barPnLs:    make([]float64, 0, 32),
	}
}

// Check ratchets the stop with the candle and reports whether the candle
// breached it.
func (em *ExitManager) Check(c types.Candle) bool {
	em.BarsHeld++

	// Update MFE/MAE tracking
	if em.pos.Direction == types.Long {
		em.BestPrice = math.Max(em.BestPrice, c.High)
		em.WorstPrice = math.Min(em.WorstPrice, c.Low)
	} else {
		em.BestPrice = math.Min(em.BestPrice, c.Low)
		em.WorstPrice = math.Max(em.WorstPrice, c.High)
	}
	em.barPnLs = append(em.barPnLs, em.pos.Direction.Sign()*(c.Close-em.pos.EntryPrice)/em.pos.EntryPrice)

	if em.pos.Direction == types.Long {
		if em.policy.Immediate || c.High > em.pos.EntryPrice+em.trailDist {
			if newStop := c.High - em.trailDist; newStop > em.stop {
				em.stop = newStop
			}
		}
		return c.Low <= em.stop
	}

	if em.policy.Immediate || c.Low < em.pos.EntryPrice-em.trailDist {
		if newStop := c.Low + em.trailDist; newStop < em.stop {
			em.stop = newStop
		}
	}
	return c.High >= em.stop
}

// StopLevel returns the current trailing stop.
func (em *ExitManager) StopLevel() float64 {
	return em.stop
}

// StopExitPrice is the fill for a stop breach on candle c: the stop, or the
// open if it gapped through on the favourable side, less slippage.
func (em *ExitManager) StopExitPrice(c types.Candle) float64 {
	if em.pos.Direction == types.Long {
		return math.Max(em.stop, c.Open) - em.pos.Slip
	}
	return math.Min(em.stop, c.Open) + em.pos.Slip
}

// MaxDrawdownPct returns the maximum adverse excursion as a fraction of entry price.
func (em *ExitManager) MaxDrawdownPct() float64 {
	return em.pos.Direction.Sign() * (em.pos.EntryPrice - em.WorstPrice) / em.pos.EntryPrice
}

// MaxProfitPct returns the maximum favorable excursion as a fraction of entry price.
func (em *ExitManager) MaxProfitPct() float64 {
	return em.pos.Direction.Sign() * (em.BestPrice - em.pos.EntryPrice) / em.pos.EntryPrice
}

// PnLStd returns the standard deviation of close-to-entry P&L across the hold.
func (em *ExitManager) PnLStd() float64 {
	if len(em.barPnLs) < 2 {
		return 0.0
	}
	sum := 0.0
	for _, v := range em.barPnLs {
		sum += v
	}
	mean := sum / float64(len(em.barPnLs))
	// population std, ddof=0
	varSum := 0.0
	for _, v := range em.barPnLs {
		diff := v - mean
		varSum += diff * diff
	}
	return math.Sqrt(varSum / float64(len(em.barPnLs)))
}

// Exit describes how a simulated position closed.
type Exit struct {
	Index      int
	Price      float64
	Reason     types.ExitReason
	FinalStop  float64
	BarsHeld   int
	MaxProfit  float64
	MaxAdverse float64
	PnLStd     float64
}

// Simulate walks candles after pos.EntryIndex until the stop is breached or
// the scan ends. Without a breach the position is marked out at the last
// scanned close with no slippage; the reason is ExitEndOfData when that
// close is the final candle of the series and ExitHorizon otherwise.
func Simulate(candles []types.Candle, pos Position, policy Policy) Exit {
	em := NewExitManager(pos, policy)
	lastIdx := len(candles) - 1
	last := lastIdx
	if policy.Horizon > 0 && pos.EntryIndex+policy.Horizon < last {
		last = pos.EntryIndex + policy.Horizon
	}

	for j := pos.EntryIndex + 1; j <= last; j++ {
		c := candles[j]
		if em.Check(c) {
			return em.exit(j, em.StopExitPrice(c), types.ExitTrailingStop)
		}
	}

	j := max(last, pos.EntryIndex)
	reason := types.ExitHorizon
	if j == lastIdx {
		reason = types.ExitEndOfData
	}
	return em.exit(j, candles[j].Close, reason)
}

func (em *ExitManager) exit(idx int, price float64, reason types.ExitReason) Exit {
	return Exit{
		Index:      idx,
		Price:      price,
		Reason:     reason,
		FinalStop:  em.stop,
		BarsHeld:   em.BarsHeld,
		MaxProfit:  em.MaxProfitPct(),
		MaxAdverse: em.MaxDrawdownPct(),
		PnLStd:     em.PnLStd(),
	}
}
