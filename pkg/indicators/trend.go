package indicators

import (
	"math"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// TrendSlope returns the relative change of a period-EMA of closes between
// now and lag candles ago: (emaNow - emaPast) / emaPast.
//
// ok is false when the window is shorter than period+lag or emaPast is 0.
func TrendSlope(candles []types.Candle, period, lag int) (slope float64, ok bool) {
	if period <= 0 || lag < 0 || len(candles) < period+lag {
		return 0, false
	}
	closes := types.Closes(candles)
	now := EMA(closes, period)
	past := EMA(closes[:len(closes)-lag], period)
	if past == 0 {
		return 0, false
	}
	return (now - past) / past, true
}

// PullbackParams controls DetectTrendAndPullback.
type PullbackParams struct {
	FastPeriod int
	SlowPeriod int
	ATRPeriod  int
	// ATRMult scales the ATR band a pullback must fit in.
	ATRMult float64
	// MinFraction is the lower edge of the band as a fraction of ATR*ATRMult.
	MinFraction float64
}

// DetectTrendAndPullback labels the trend from the fast/slow EMAs and flags
// an active pullback.
//
// UP requires fast > slow and close > slow; DOWN is mirrored. A pullback is
// active when the retracement from the fast EMA (a dip for UP, a rally for
// DOWN) lies strictly between MinFraction and 1 times ATR*ATRMult. Windows
// shorter than SlowPeriod+5 are NEUTRAL.
func DetectTrendAndPullback(candles []types.Candle, p PullbackParams) (types.Trend, bool) {
	if len(candles) < p.SlowPeriod+5 {
		return types.TrendNeutral, false
	}
	closes := types.Closes(candles)
	fast := EMA(closes, p.FastPeriod)
	slow := EMA(closes, p.SlowPeriod)
	last := closes[len(closes)-1]
	trend := classifyTrend(fast, slow, last)
	return trend, pullbackActive(trend, fast, last, ATR(candles, p.ATRPeriod), p)
}

func classifyTrend(fast, slow, last float64) types.Trend {
	switch {
	case fast > slow && last > slow:
		return types.TrendUp
	case fast < slow && last < slow:
		return types.TrendDown
	default:
		return types.TrendNeutral
	}
}

func pullbackActive(trend types.Trend, fast, last, atr float64, p PullbackParams) bool {
	var retrace float64
	switch trend {
	case types.TrendUp:
		retrace = fast - last
	case types.TrendDown:
		retrace = last - fast
	default:
		return false
	}
	band := atr * p.ATRMult
	return retrace > band*p.MinFraction && retrace < band
}

// SwingHigh returns the highest high of the last n candles.
func SwingHigh(candles []types.Candle, n int) float64 {
	recent := tail(candles, n)
	if len(recent) == 0 {
		return 0
	}
	high := recent[0].High
	for _, c := range recent[1:] {
		high = math.Max(high, c.High)
	}
	return high
}

// SwingLow returns the lowest low of the last n candles.
func SwingLow(candles []types.Candle, n int) float64 {
	recent := tail(candles, n)
	if len(recent) == 0 {
		return 0
	}
	low := recent[0].Low
	for _, c := range recent[1:] {
		low = math.Min(low, c.Low)
	}
	return low
}

func tail(candles []types.Candle, n int) []types.Candle {
	if n <= 0 {
		return nil
	}
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
