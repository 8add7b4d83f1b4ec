// Package indicators computes the technical indicators used by the signal
// generator: EMA, ATR, Wilder-smoothed ADX, EMA slope, trend/pullback
// detection and the composite trade-quality score.
//
// All functions are pure and work on a window of candles ordered oldest
// first. Insufficient data yields a zero (or "not ok") sentinel rather than an
// error so the backtest loop can simply decline to trade.
package indicators

// EMA returns the exponential moving average of prices for the given period.
//
// The average is seeded with the simple mean of the first period values and
// the recurrence ema = (price-ema)*k + ema with k = 2/(period+1) is applied to
// the remainder in input order. Returns 0 when fewer than period values are
// supplied or period is not positive.
func EMA(prices []float64, period int) float64 {
	if period <= 0 || len(prices) < period {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := mean(prices[:period])
	for _, p := range prices[period:] {
		ema = (p-ema)*k + ema
	}
	return ema
}

// mean computes the arithmetic mean of a float64 slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
