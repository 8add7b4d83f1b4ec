// Package scan ranks historical windows by trend strength so the strongest
// up and down moves can be picked for strategy validation.
package scan

import (
	"math"
	"sort"
	"time"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// Period describes one window of 2*window candles centred on an index.
type Period struct {
	Center         int             `json:"center"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	StartPrice     float64         `json:"start_price"`
	EndPrice       float64         `json:"end_price"`
	PriceChangePct float64         `json:"price_change_pct"`
	VolatilityPct  float64         `json:"volatility_pct"`
	Strength       float64         `json:"trend_strength"`
	Direction      types.Direction `json:"direction"`
}

// TrendingPeriods scores every centre index i in [window, len-window) over
// candles[i-window : i+window] and returns the periods sorted by strength,
// strongest first. Ties keep chronological order.
func TrendingPeriods(candles []types.Candle, window int) []Period {
	if window < 1 || len(candles) < 2*window+1 {
		return nil
	}

	periods := make([]Period, 0, len(candles)-2*window)
	for i := window; i < len(candles)-window; i++ {
		periods = append(periods, score(candles[i-window:i+window], i))
	}

	sort.SliceStable(periods, func(a, b int) bool {
		return periods[a].Strength > periods[b].Strength
	})
	return periods
}

func score(w []types.Candle, center int) Period {
	first, last := w[0], w[len(w)-1]
	change := (last.Close - first.Close) / first.Close * 100

	returns := make([]float64, len(w)-1)
	var sum float64
	for j := 1; j < len(w); j++ {
		returns[j-1] = (w[j].Close - w[j-1].Close) / w[j-1].Close
		sum += returns[j-1]
	}
	avg := sum / float64(len(returns))
	var ss float64
	for _, r := range returns {
		ss += (r - avg) * (r - avg)
	}
	vol := math.Sqrt(ss / float64(len(returns)))

	var strength float64
	if vol > 0 {
		strength = math.Abs(change) / (vol * 100)
	}

	dir := types.Short
	if change > 0 {
		dir = types.Long
	}

	return Period{
		Center:         center,
		StartDate:      first.Timestamp,
		EndDate:        last.Timestamp,
		StartPrice:     first.Close,
		EndPrice:       last.Close,
		PriceChangePct: change,
		VolatilityPct:  vol * 100,
		Strength:       strength,
		Direction:      dir,
	}
}

// Best returns the strongest period in the given direction.
func Best(sorted []Period, dir types.Direction) (Period, bool) {
	for _, p := range sorted {
		if p.Direction == dir {
			return p, true
		}
	}
	return Period{}, false
}

// BestSince returns the strongest period starting on or after since.
func BestSince(sorted []Period, since time.Time) (Period, bool) {
	for _, p := range sorted {
		if !p.StartDate.Before(since) {
			return p, true
		}
	}
	return Period{}, false
}
