// Package signal turns a lookback window into an entry decision.
//
// A Signaler first labels the regime of the window, then runs its gate
// sequence. Each gate either passes or rejects the candle with a Reason;
// rejections are ordinary outcomes, never errors.
package signal

import (
	"math"

	"github.com/algomatic/regime-backtest/pkg/indicators"
	"github.com/algomatic/regime-backtest/pkg/regime"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// Reason names the gate that rejected a candle.
type Reason string

const (
	// Accept is the zero Reason: every gate passed.
	Accept         Reason = ""
	RejectRegime   Reason = "regime"
	RejectSlope    Reason = "slope"
	RejectTrend    Reason = "trend"
	RejectPullback Reason = "pullback"
	RejectQuality  Reason = "quality"
)

// Decision is an accepted entry signal on the last candle of a window.
type Decision struct {
	Direction types.Direction
	Close     float64
	// Slip is the absolute slippage applied at entry and again at exit.
	Slip       float64
	EntryPrice float64
	Stop       float64
	ATR        float64
	Regime     regime.Info
	Snapshot   indicators.Snapshot
}

// Signaler evaluates lookback windows. Implementations must only read the
// window they are given and hold no state between calls.
type Signaler interface {
	// Regime labels the window. It is called for every evaluated candle,
	// including those skipped while a position is open.
	Regime(window []types.Candle) regime.Info
	// Evaluate runs the gate sequence on a window already labelled by Regime.
	Evaluate(window []types.Candle, info regime.Info) (Decision, Reason)
}

// Config parametrises the regime-adaptive Generator.
type Config struct {
	Indicators indicators.Params
	Regimes    regime.Table
	// Slippage is a fraction of the entry close.
	Slippage float64
	// StopATRMult is the ATR buffer placed beyond the swing extreme.
	StopATRMult float64
}

// Generator is the regime-adaptive pullback signaler: trade in the direction
// of the EMA trend, on a pullback to the fast EMA, when the regime allows it.
type Generator struct {
	cfg Config
}

// NewGenerator creates a Generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Regime classifies the window's Wilder ADX against the regime table.
func (g *Generator) Regime(window []types.Candle) regime.Info {
	return g.cfg.Regimes.Classify(indicators.ADX(window, g.cfg.Indicators.ADXPeriod))
}

// Evaluate applies, in order: regime permission, minimum slope, trend with an
// active pullback, and minimum trade quality.
func (g *Generator) Evaluate(window []types.Candle, info regime.Info) (Decision, Reason) {
	if len(window) == 0 || !info.ShouldTrade {
		return Decision{}, RejectRegime
	}

	snap := indicators.Compute(window, g.cfg.Indicators)
	if !snap.SlopeOK || math.Abs(snap.Slope) < info.MinSlope {
		return Decision{}, RejectSlope
	}
	dir, ok := snap.Trend.Direction()
	if !ok {
		return Decision{}, RejectTrend
	}
	if !snap.Pullback {
		return Decision{}, RejectPullback
	}
	if snap.Quality < info.MinQuality {
		return Decision{}, RejectQuality
	}

	closePrice := window[len(window)-1].Close
	slip := closePrice * g.cfg.Slippage
	stop := snap.SwingLow - snap.ATR*g.cfg.StopATRMult
	if dir == types.Short {
		stop = snap.SwingHigh + snap.ATR*g.cfg.StopATRMult
	}
	return Decision{
		Direction:  dir,
		Close:      closePrice,
		Slip:       slip,
		EntryPrice: closePrice + dir.Sign()*slip,
		Stop:       stop,
		ATR:        snap.ATR,
		Regime:     info,
		Snapshot:   snap,
	}, Accept
}
