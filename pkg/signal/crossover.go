package signal

import (
	"github.com/algomatic/regime-backtest/pkg/indicators"
	"github.com/algomatic/regime-backtest/pkg/regime"
	"github.com/algomatic/regime-backtest/pkg/types"
)

// CrossoverConfig parametrises the Crossover signaler.
type CrossoverConfig struct {
	FastPeriod int
	SlowPeriod int
	ATRPeriod  int
	ADXPeriod  int
	// MinADX is the single-window ADX below which no trade is taken.
	MinADX float64
	// StopATRMult places the initial stop this many ATRs from the close.
	StopATRMult float64
	Slippage    float64
	// Bands labels the regime for reporting only; MinADX is the gate.
	Bands regime.Table
}

// DefaultCrossoverConfig returns the EMA 9/21, ADX 20, 2×ATR setup.
func DefaultCrossoverConfig() CrossoverConfig {
	return CrossoverConfig{
		FastPeriod:  9,
		SlowPeriod:  21,
		ATRPeriod:   14,
		ADXPeriod:   14,
		MinADX:      20,
		StopATRMult: 2,
		Slippage:    0.0005,
		Bands:       regime.DefaultTable(),
	}
}

// Crossover enters in the direction of the fast/slow EMA ordering when the
// close confirms it beyond the fast EMA. It has no pullback or quality gate.
type Crossover struct {
	cfg CrossoverConfig
}

// NewCrossover creates a Crossover signaler.
func NewCrossover(cfg CrossoverConfig) *Crossover {
	return &Crossover{cfg: cfg}
}

// Regime labels the window from its single-window ADX.
func (c *Crossover) Regime(window []types.Candle) regime.Info {
	return c.cfg.Bands.Classify(indicators.SimpleADX(window, c.cfg.ADXPeriod))
}

// Evaluate gates on MinADX, then on EMA ordering confirmed by the close.
func (c *Crossover) Evaluate(window []types.Candle, info regime.Info) (Decision, Reason) {
	if len(window) == 0 || info.ADX < c.cfg.MinADX {
		return Decision{}, RejectRegime
	}

	closes := types.Closes(window)
	fast := indicators.EMA(closes, c.cfg.FastPeriod)
	slow := indicators.EMA(closes, c.cfg.SlowPeriod)
	if fast == 0 || slow == 0 {
		return Decision{}, RejectTrend
	}
	closePrice := closes[len(closes)-1]

	var dir types.Direction
	switch {
	case fast > slow && closePrice > fast:
		dir = types.Long
	case fast < slow && closePrice < fast:
		dir = types.Short
	default:
		return Decision{}, RejectTrend
	}

	atr := indicators.ATR(window, c.cfg.ATRPeriod)
	slip := closePrice * c.cfg.Slippage
	return Decision{
		Direction:  dir,
		Close:      closePrice,
		Slip:       slip,
		EntryPrice: closePrice + dir.Sign()*slip,
		Stop:       closePrice - dir.Sign()*atr*c.cfg.StopATRMult,
		ATR:        atr,
		Regime:     info,
		Snapshot: indicators.Snapshot{
			FastEMA: fast,
			SlowEMA: slow,
			ATR:     atr,
			ADX:     info.ADX,
			Trend:   trendOf(dir),
		},
	}, Accept
}

func trendOf(d types.Direction) types.Trend {
	if d == types.Short {
		return types.TrendDown
	}
	return types.TrendUp
}
