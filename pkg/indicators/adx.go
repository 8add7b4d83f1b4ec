package indicators

import (
	"math"

	"github.com/algomatic/regime-backtest/pkg/types"
)

// WilderSmooth applies Wilder's smoothing: the first output is the simple
// mean of the first period values and each subsequent output is
// (prev*(period-1) + current)/period. The result has len(values)-period+1
// elements, or is nil when fewer than period values are supplied.
func WilderSmooth(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	prev := mean(values[:period])
	out = append(out, prev)
	n := float64(period)
	for _, v := range values[period:] {
		prev = (prev*(n-1) + v) / n
		out = append(out, prev)
	}
	return out
}

// directionalMovement returns per-step true range, +DM and -DM.
// +DM is the up-move when it exceeds the down-move and is positive, else 0;
// -DM is symmetric.
func directionalMovement(candles []types.Candle) (tr, plusDM, minusDM []float64) {
	n := len(candles) - 1
	if n <= 0 {
		return nil, nil, nil
	}
	tr = make([]float64, n)
	plusDM = make([]float64, n)
	minusDM = make([]float64, n)
	for i := 1; i < len(candles); i++ {
		cur, prev := candles[i], candles[i-1]
		tr[i-1] = trueRange(cur, prev.Close)
		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}
	return tr, plusDM, minusDM
}

// diPair converts smoothed DM and TR into +DI/-DI, 0 when TR is 0.
func diPair(plusDM, minusDM, tr float64) (float64, float64) {
	if tr == 0 {
		return 0, 0
	}
	return plusDM / tr * 100, minusDM / tr * 100
}

// dx returns |+DI - -DI| / (+DI + -DI) * 100, 0 when the DI sum is 0.
func dx(plusDI, minusDI float64) float64 {
	sum := plusDI + minusDI
	if sum == 0 {
		return 0
	}
	return math.Abs(plusDI-minusDI) / sum * 100
}

// ADX returns the Average Directional Index of the window using Wilder's
// smoothing for TR, +DM, -DM and the DX series. The value lies in [0,100];
// 0 is returned when the window holds fewer than 2*period candles.
func ADX(candles []types.Candle, period int) float64 {
	if period <= 0 || len(candles) < 2*period {
		return 0
	}
	tr, plusDM, minusDM := directionalMovement(candles)
	smoothTR := WilderSmooth(tr, period)
	smoothPlus := WilderSmooth(plusDM, period)
	smoothMinus := WilderSmooth(minusDM, period)

	dxs := make([]float64, len(smoothTR))
	for i := range smoothTR {
		pdi, mdi := diPair(smoothPlus[i], smoothMinus[i], smoothTR[i])
		dxs[i] = dx(pdi, mdi)
	}

	adx := WilderSmooth(dxs, period)
	if len(adx) == 0 {
		return 0
	}
	return adx[len(adx)-1]
}

// SimpleADX is the single-window variant used by the crossover strategy:
// TR, +DM and -DM are summed over the most recent period steps and the DX of
// those sums is returned directly, without any smoothing. Returns 0 when
// fewer than period+1 candles are supplied.
func SimpleADX(candles []types.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}
	tr, plusDM, minusDM := directionalMovement(candles[len(candles)-period-1:])
	var trSum, plusSum, minusSum float64
	for i := range tr {
		trSum += tr[i]
		plusSum += plusDM[i]
		minusSum += minusDM[i]
	}
	pdi, mdi := diPair(plusSum, minusSum, trSum)
	return dx(pdi, mdi)
}
