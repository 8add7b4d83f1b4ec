package types

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for malformed candle series. They are always returned
// wrapped in a *SeriesError carrying the offending index.
var (
	ErrEmptySeries      = errors.New("empty candle series")
	ErrNonFinite        = errors.New("NaN or infinite value")
	ErrUnsorted         = errors.New("timestamps not strictly increasing")
	ErrNonPositivePrice = errors.New("non-positive price")
	ErrNegativeVolume   = errors.New("negative volume")
	ErrInvertedRange    = errors.New("high below low")
)

// SeriesError describes the first malformed candle found by ValidateSeries.
type SeriesError struct {
	Index int
	Err   error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("candle %d: %v", e.Index, e.Err)
}

func (e *SeriesError) Unwrap() error { return e.Err }

// ValidateSeries checks that a candle series can be simulated: at least one
// candle, strictly increasing timestamps, finite positive prices, finite
// non-negative volume and high >= low.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}
	for i, c := range candles {
		if !finite(c.Open, c.High, c.Low, c.Close, c.Volume) {
			return &SeriesError{Index: i, Err: ErrNonFinite}
		}
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return &SeriesError{Index: i, Err: ErrNonPositivePrice}
		}
		if c.Volume < 0 {
			return &SeriesError{Index: i, Err: ErrNegativeVolume}
		}
		if c.High < c.Low {
			return &SeriesError{Index: i, Err: ErrInvertedRange}
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return &SeriesError{Index: i, Err: ErrUnsorted}
		}
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
