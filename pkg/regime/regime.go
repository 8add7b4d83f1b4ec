// Package regime classifies market trendiness from an ADX reading and
// attaches the entry-filter thresholds that apply in that regime.
package regime

import "fmt"

// Label names a market regime.
type Label string

const (
	Trending Label = "TRENDING"
	Normal   Label = "NORMAL"
	Choppy   Label = "CHOPPY"
)

// Labels lists every regime in reporting order.
var Labels = []Label{Trending, Normal, Choppy}

// Thresholds are the entry filters applied while a regime is active.
type Thresholds struct {
	ShouldTrade bool `yaml:"should_trade" json:"should_trade"`
	// MinSlope is the minimum absolute EMA slope.
	MinSlope float64 `yaml:"min_slope" json:"min_slope"`
	// MinQuality is the minimum trade-quality score (0..1).
	MinQuality float64 `yaml:"min_quality" json:"min_quality"`
	// MinFirstHourATR is the minimum first-hour range as a fraction of ATR.
	// Carried for intraday feeds; the daily driver does not gate on it.
	MinFirstHourATR float64 `yaml:"min_first_hour_atr" json:"min_first_hour_atr"`
}

// Table maps ADX bands to thresholds. ADX >= TrendingADX is TRENDING,
// NormalADX <= ADX < TrendingADX is NORMAL, anything lower is CHOPPY.
type Table struct {
	TrendingADX float64    `yaml:"trending_adx" json:"trending_adx"`
	NormalADX   float64    `yaml:"normal_adx" json:"normal_adx"`
	Trending    Thresholds `yaml:"trending" json:"trending"`
	Normal      Thresholds `yaml:"normal" json:"normal"`
	Choppy      Thresholds `yaml:"choppy" json:"choppy"`
}

// DefaultTable returns the standard regime table.
func DefaultTable() Table {
	return Table{
		TrendingADX: 25,
		NormalADX:   15,
		Trending:    Thresholds{ShouldTrade: true, MinSlope: 0.01, MinQuality: 0.70, MinFirstHourATR: 0.40},
		Normal:      Thresholds{ShouldTrade: true, MinSlope: 0.003, MinQuality: 0.50, MinFirstHourATR: 0.30},
		Choppy:      Thresholds{ShouldTrade: false, MinSlope: 0.0, MinQuality: 0.80, MinFirstHourATR: 0.50},
	}
}

// Validate checks that the ADX bands are ordered and the thresholds sane.
func (t Table) Validate() error {
	if t.NormalADX < 0 || t.TrendingADX > 100 || t.NormalADX > t.TrendingADX {
		return fmt.Errorf("regime bands must satisfy 0 <= normal_adx (%g) <= trending_adx (%g) <= 100",
			t.NormalADX, t.TrendingADX)
	}
	for _, l := range Labels {
		th := t.For(l)
		if th.MinSlope < 0 {
			return fmt.Errorf("regime %s: min_slope must be >= 0, got %g", l, th.MinSlope)
		}
		if th.MinQuality < 0 || th.MinQuality > 1 {
			return fmt.Errorf("regime %s: min_quality must be in [0,1], got %g", l, th.MinQuality)
		}
		if th.MinFirstHourATR < 0 {
			return fmt.Errorf("regime %s: min_first_hour_atr must be >= 0, got %g", l, th.MinFirstHourATR)
		}
	}
	return nil
}

// For returns the thresholds of a regime label.
func (t Table) For(l Label) Thresholds {
	switch l {
	case Trending:
		return t.Trending
	case Normal:
		return t.Normal
	default:
		return t.Choppy
	}
}

// Info is the regime assessment for one evaluation step.
type Info struct {
	Label Label
	ADX   float64
	Thresholds
}

// Classify maps an ADX reading onto the table. Band boundaries are closed
// from below: ADX == TrendingADX is TRENDING and ADX == NormalADX is NORMAL.
func (t Table) Classify(adx float64) Info {
	var l Label
	switch {
	case adx >= t.TrendingADX:
		l = Trending
	case adx >= t.NormalADX:
		l = Normal
	default:
		l = Choppy
	}
	return Info{Label: l, ADX: adx, Thresholds: t.For(l)}
}

// WithFixedThresholds keeps the ADX bands (so regimes are still labelled and
// tallied) but applies the same tradable thresholds in every regime. Used by
// strategies that do not adapt to the regime.
func (t Table) WithFixedThresholds(minSlope, minQuality float64) Table {
	th := Thresholds{ShouldTrade: true, MinSlope: minSlope, MinQuality: minQuality}
	t.Trending, t.Normal, t.Choppy = th, th, th
	return t
}
