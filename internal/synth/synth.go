// Package synth builds deterministic synthetic candle series for tests.
package synth

import (
	"time"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// Start is the timestamp of the first synthetic candle.
var Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Step describes one candle as a close-to-close move and a volume.
type Step struct {
	Delta  float64
	Volume float64
}

// Series chains n candles starting at price start. Each candle opens at the
// previous close and closes at open+Delta. Up candles get a 0.5 wick either
// side of the body; down candles get 0.3.
func Series(n int, start float64, step func(day int) Step) []types.Candle {
	out := make([]types.Candle, n)
	prev := start
	for d := 0; d < n; d++ {
		s := step(d)
		open := prev
		closePrice := prev + s.Delta
		c := types.Candle{
			Timestamp: Start.AddDate(0, 0, d),
			Open:      open,
			Close:     closePrice,
			Volume:    s.Volume,
		}
		if s.Delta >= 0 {
			c.High = closePrice + 0.5
			c.Low = open - 0.5
		} else {
			c.High = open + 0.3
			c.Low = closePrice - 0.3
		}
		out[d] = c
		prev = closePrice
	}
	return out
}

// Uptrend rises by 1 a day from 100 with a 6-point pullback on high volume
// every tenth candle.
func Uptrend(n int) []types.Candle {
	return Series(n, 100, UptrendStep)
}

// UptrendStep is the step function behind Uptrend.
func UptrendStep(day int) Step {
	if day > 0 && day%10 == 0 {
		return Step{Delta: -6, Volume: 2500}
	}
	return Step{Delta: 1, Volume: 1000}
}

// Downtrend mirrors Uptrend: falls by 1 a day from 300 with a 6-point rally
// on high volume every tenth candle.
func Downtrend(n int) []types.Candle {
	return Series(n, 300, func(day int) Step {
		if day > 0 && day%10 == 0 {
			return Step{Delta: 6, Volume: 2500}
		}
		return Step{Delta: -1, Volume: 1000}
	})
}

// Flat returns n identical candles at price.
func Flat(n int, price float64) []types.Candle {
	out := make([]types.Candle, n)
	for d := range out {
		out[d] = types.Candle{
			Timestamp: Start.AddDate(0, 0, d),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    1000,
		}
	}
	return out
}
