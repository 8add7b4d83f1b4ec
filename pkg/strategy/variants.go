package strategy

// Built-in variants.

import (
	"github.com/algomatic/regime-backtest/pkg/config"
	"github.com/algomatic/regime-backtest/pkg/exits"
	"github.com/algomatic/regime-backtest/pkg/signal"
)

// Fixed thresholds of the non-adaptive variant.
const (
	fixedMinSlope   = 0.003
	fixedMinQuality = 0.5
)

func pullbackExit(cfg config.Strategy) exits.Policy {
	return exits.Policy{TrailMult: cfg.TrailingATRMult, Horizon: cfg.ExitHorizon}
}

func regimeAdaptive() *Definition {
	return &Definition{
		ID:          1,
		Name:        "regime",
		DisplayName: "Regime-Adaptive Pullback",
		Description: "EMA trend pullbacks gated by ADX regime; slope and quality floors tighten as the market trends harder.",
		Build: func(cfg config.Strategy) Strategy {
			return Strategy{
				Name: "regime",
				Signaler: signal.NewGenerator(signal.Config{
					Indicators:  cfg.Indicators,
					Regimes:     cfg.Regimes,
					Slippage:    cfg.Slippage,
					StopATRMult: cfg.StopATRMult,
				}),
				Exit: pullbackExit(cfg),
			}
		},
	}
}

func fixedThreshold() *Definition {
	return &Definition{
		ID:          2,
		Name:        "trending",
		DisplayName: "Fixed-Threshold Pullback",
		Description: "Same pullback entries with no ADX gate: slope >= 0.003 and quality >= 0.5 in every regime.",
		Build: func(cfg config.Strategy) Strategy {
			return Strategy{
				Name: "trending",
				Signaler: signal.NewGenerator(signal.Config{
					Indicators:  cfg.Indicators,
					Regimes:     cfg.Regimes.WithFixedThresholds(fixedMinSlope, fixedMinQuality),
					Slippage:    cfg.Slippage,
					StopATRMult: cfg.StopATRMult,
				}),
				Exit: pullbackExit(cfg),
			}
		},
	}
}

func emaCrossover() *Definition {
	return &Definition{
		ID:          3,
		Name:        "crossover",
		DisplayName: "Daily EMA 9/21 Crossover",
		Description: "Trend-following EMA 9/21 entries while single-window ADX >= 20; 2xATR stop trailed from the first candle, held to the end of data.",
		Build: func(cfg config.Strategy) Strategy {
			xc := signal.DefaultCrossoverConfig()
			xc.ATRPeriod = cfg.Indicators.ATRPeriod
			xc.ADXPeriod = cfg.Indicators.ADXPeriod
			xc.Slippage = cfg.Slippage
			xc.Bands = cfg.Regimes
			return Strategy{
				Name:     "crossover",
				Signaler: signal.NewCrossover(xc),
				Exit:     exits.Policy{TrailMult: 2, Immediate: true},
			}
		},
	}
}
