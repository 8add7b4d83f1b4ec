package indicators

import (
	"math"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// TrueRanges returns one true range per step (len(candles)-1 values):
// max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRanges(candles []types.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		out = append(out, trueRange(candles[i], candles[i-1].Close))
	}
	return out
}

func trueRange(c types.Candle, prevClose float64) float64 {
	return math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
}

// ATR returns the simple (not Wilder-smoothed) average true range: the mean
// of the most recent period true ranges, or the mean of all of them when
// fewer than period exist. Returns 0 for fewer than two candles.
func ATR(candles []types.Candle, period int) float64 {
	trs := TrueRanges(candles)
	if len(trs) == 0 {
		return 0
	}
	if period <= 0 || len(trs) < period {
		return mean(trs)
	}
	return mean(trs[len(trs)-period:])
}
