package indicators

import (
	"math"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// Weights of the trade-quality components.
const (
	qualityTrendWeight    = 0.4
	qualityPullbackWeight = 0.4
	qualityVolumeWeight   = 0.2

	// neutralVolumeScore is used when the window is too short for a volume average.
	neutralVolumeScore = 0.5
)

// QualityParams controls TradeQuality.
type QualityParams struct {
	FastPeriod     int
	SlowPeriod     int
	SwingLookback  int // candles in the swing range used for pullback depth
	VolumeLookback int // current candle plus the trailing candles averaged
}

// TradeQuality returns a composite score in [0,1]:
//
//	0.4 * trend strength   min(|fast-slow|/slow * 100, 1)
//	0.4 * pullback depth   peaks when close sits mid-way in the swing range
//	0.2 * volume           current/average volume halved, capped at 1
//
// Windows shorter than SlowPeriod+5 score 0.
func TradeQuality(candles []types.Candle, p QualityParams) float64 {
	if len(candles) < p.SlowPeriod+5 {
		return 0
	}
	closes := types.Closes(candles)
	fast := EMA(closes, p.FastPeriod)
	slow := EMA(closes, p.SlowPeriod)

	var separation float64
	if slow > 0 {
		separation = math.Abs(fast-slow) / slow
	}
	trendStrength := math.Min(separation*100, 1)

	score := trendStrength*qualityTrendWeight +
		pullbackScore(candles, p.SwingLookback)*qualityPullbackWeight +
		volumeScore(candles, p.VolumeLookback)*qualityVolumeWeight
	return clamp01(score)
}

// pullbackScore scores the retracement depth of the last close inside the
// swing range: depth*2 up to 0.5, then linearly back down to 0 at depth 1.
func pullbackScore(candles []types.Candle, lookback int) float64 {
	high := SwingHigh(candles, lookback)
	low := SwingLow(candles, lookback)
	rng := high - low
	if rng <= 0 {
		return 0
	}
	last := candles[len(candles)-1].Close
	depth := math.Max((high-last)/rng, (last-low)/rng)
	if depth <= 0.5 {
		return depth * 2
	}
	return math.Max(0, 1-(depth-0.5)*2)
}

func volumeScore(candles []types.Candle, lookback int) float64 {
	if lookback < 2 || len(candles) < lookback {
		return neutralVolumeScore
	}
	prior := candles[len(candles)-lookback : len(candles)-1]
	var sum float64
	for _, c := range prior {
		sum += c.Volume
	}
	avg := sum / float64(len(prior))
	ratio := 1.0
	if avg > 0 {
		ratio = candles[len(candles)-1].Volume / avg
	}
	return math.Min(ratio/2, 1)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
