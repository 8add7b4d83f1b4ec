package indicators

import "github.com/algomatic/regime-backtest/pkg/types"

// Params bundles the periods and multipliers used to build a Snapshot.
type Params struct {
	FastPeriod          int     `yaml:"ema_fast" json:"ema_fast"`
	SlowPeriod          int     `yaml:"ema_slow" json:"ema_slow"`
	ATRPeriod           int     `yaml:"atr_period" json:"atr_period"`
	ADXPeriod           int     `yaml:"adx_period" json:"adx_period"`
	SlopePeriod         int     `yaml:"slope_ema_period" json:"slope_ema_period"`
	SlopeLag            int     `yaml:"slope_lag" json:"slope_lag"`
	SwingLookback       int     `yaml:"swing_lookback" json:"swing_lookback"`
	VolumeLookback      int     `yaml:"volume_lookback" json:"volume_lookback"`
	PullbackATRMult     float64 `yaml:"pullback_atr_mult" json:"pullback_atr_mult"`
	PullbackMinFraction float64 `yaml:"pullback_min_fraction" json:"pullback_min_fraction"`
}

// DefaultParams returns the EMA 13/34, ATR/ADX 14 parameter set.
func DefaultParams() Params {
	return Params{
		FastPeriod:          13,
		SlowPeriod:          34,
		ATRPeriod:           14,
		ADXPeriod:           14,
		SlopePeriod:         25,
		SlopeLag:            10,
		SwingLookback:       10,
		VolumeLookback:      20,
		PullbackATRMult:     2.0,
		PullbackMinFraction: 0.3,
	}
}

// Pullback returns the trend/pullback detector parameters.
func (p Params) Pullback() PullbackParams {
	return PullbackParams{
		FastPeriod:  p.FastPeriod,
		SlowPeriod:  p.SlowPeriod,
		ATRPeriod:   p.ATRPeriod,
		ATRMult:     p.PullbackATRMult,
		MinFraction: p.PullbackMinFraction,
	}
}

// Quality returns the trade-quality parameters.
func (p Params) Quality() QualityParams {
	return QualityParams{
		FastPeriod:     p.FastPeriod,
		SlowPeriod:     p.SlowPeriod,
		SwingLookback:  p.SwingLookback,
		VolumeLookback: p.VolumeLookback,
	}
}

// Snapshot holds every indicator value derived from one lookback window.
// It is recomputed on each evaluation step and never persisted.
type Snapshot struct {
	FastEMA   float64
	SlowEMA   float64
	ATR       float64
	ADX       float64
	Slope     float64
	SlopeOK   bool
	Quality   float64
	Trend     types.Trend
	Pullback  bool
	SwingHigh float64
	SwingLow  float64
}

// Compute derives a Snapshot from the window. The last candle of the window
// is the evaluation candle; nothing after it is read.
func Compute(window []types.Candle, p Params) Snapshot {
	closes := types.Closes(window)
	slope, slopeOK := TrendSlope(window, p.SlopePeriod, p.SlopeLag)
	trend, pullback := DetectTrendAndPullback(window, p.Pullback())
	return Snapshot{
		FastEMA:   EMA(closes, p.FastPeriod),
		SlowEMA:   EMA(closes, p.SlowPeriod),
		ATR:       ATR(window, p.ATRPeriod),
		ADX:       ADX(window, p.ADXPeriod),
		Slope:     slope,
		SlopeOK:   slopeOK,
		Quality:   TradeQuality(window, p.Quality()),
		Trend:     trend,
		Pullback:  pullback,
		SwingHigh: SwingHigh(window, p.SwingLookback),
		SwingLow:  SwingLow(window, p.SwingLookback),
	}
}
