package exits

import (
	"math"
	"testing"

	"github.com/algomatic/regime-backtest/internal/synth"
	"github.com/algomatic/regime-backtest/pkg/types"
)

func bar(open, high, low, closePrice float64) types.Candle {
	return types.Candle{Open: open, High: high, Low: low, Close: closePrice, Volume: 1000}
}

func TestTrailingStopLong(t *testing.T) {
	// TrailDist = 1.5 * 5 = 7.5, activates above 107.5
	em := NewExitManager(Position{
		Direction: types.Long, EntryPrice: 100, InitialStop: 90, Quantity: 1, ATR: 5, Slip: 0.1,
	}, Policy{TrailMult: 1.5, Horizon: 20})

	// Bar 1: high 106 has not cleared entry + 7.5, stop stays 90.
	if em.Check(bar(100, 106, 95, 105)) {
		t.Error("bar 1: unexpected exit")
	}
	if em.StopLevel() != 90 {
		t.Errorf("bar 1: stop = %f, want 90", em.StopLevel())
	}

	// Bar 2: high 110 activates the trail, stop = 102.5. Low 104 holds.
	if em.Check(bar(105, 110, 104, 109)) {
		t.Error("bar 2: unexpected exit")
	}
	if math.Abs(em.StopLevel()-102.5) > 1e-9 {
		t.Errorf("bar 2: stop = %f, want 102.5", em.StopLevel())
	}

	// Bar 3: 109 - 7.5 = 101.5 would loosen, stop stays 102.5. Low 102 breaches.
	c := bar(108, 109, 102, 103)
	if !em.Check(c) {
		t.Fatal("bar 3: expected trailing stop breach")
	}
	if math.Abs(em.StopLevel()-102.5) > 1e-9 {
		t.Errorf("bar 3: stop = %f, want 102.5", em.StopLevel())
	}
	// Opened above the stop: filled at the open less slippage.
	if got := em.StopExitPrice(c); math.Abs(got-107.9) > 1e-9 {
		t.Errorf("exit price = %f, want 107.9", got)
	}
	// Gapped below the stop: filled at the stop less slippage.
	if got := em.StopExitPrice(bar(100, 101, 99, 100)); math.Abs(got-102.4) > 1e-9 {
		t.Errorf("gap exit price = %f, want 102.4", got)
	}
}

func TestTrailingStopShort(t *testing.T) {
	em := NewExitManager(Position{
		Direction: types.Short, EntryPrice: 100, InitialStop: 110, Quantity: 1, ATR: 5, Slip: 0.1,
	}, Policy{TrailMult: 1.5, Horizon: 20})

	if em.Check(bar(100, 105, 95, 96)) {
		t.Error("bar 1: unexpected exit")
	}
	if em.StopLevel() != 110 {
		t.Errorf("bar 1: stop = %f, want 110", em.StopLevel())
	}

	// Low 90 clears entry - 7.5: stop = 97.5.
	if em.Check(bar(96, 96, 90, 91)) {
		t.Error("bar 2: unexpected exit")
	}
	if math.Abs(em.StopLevel()-97.5) > 1e-9 {
		t.Errorf("bar 2: stop = %f, want 97.5", em.StopLevel())
	}

	// 92 + 7.5 = 99.5 would loosen; high 98 breaches 97.5.
	c := bar(93, 98, 92, 97)
	if !em.Check(c) {
		t.Fatal("bar 3: expected trailing stop breach")
	}
	if got := em.StopExitPrice(c); math.Abs(got-93.1) > 1e-9 {
		t.Errorf("exit price = %f, want 93.1", got)
	}
}

func TestImmediateTrail(t *testing.T) {
	em := NewExitManager(Position{
		Direction: types.Long, EntryPrice: 100, InitialStop: 90, Quantity: 1, ATR: 5,
	}, Policy{TrailMult: 2, Immediate: true})

	em.Check(bar(100, 101, 99, 100.5))
	if math.Abs(em.StopLevel()-91) > 1e-9 {
		t.Errorf("stop = %f, want 91", em.StopLevel())
	}
}

func TestStopIsMonotonic(t *testing.T) {
	candles := make([]types.Candle, 200)
	price := 100.0
	for i := range candles {
		next := 100 + 10*math.Sin(float64(i)/7) + 3*math.Sin(float64(i)/2)
		candles[i] = bar(price, math.Max(price, next)+1, math.Min(price, next)-1, next)
		price = next
	}

	for _, immediate := range []bool{false, true} {
		long := NewExitManager(Position{Direction: types.Long, EntryPrice: 100, InitialStop: 80, ATR: 2},
			Policy{TrailMult: 1.5, Immediate: immediate})
		short := NewExitManager(Position{Direction: types.Short, EntryPrice: 100, InitialStop: 120, ATR: 2},
			Policy{TrailMult: 1.5, Immediate: immediate})

		prevLong, prevShort := long.StopLevel(), short.StopLevel()
		for i, c := range candles {
			long.Check(c)
			short.Check(c)
			if long.StopLevel() < prevLong {
				t.Fatalf("immediate=%v bar %d: long stop loosened %f -> %f", immediate, i, prevLong, long.StopLevel())
			}
			if short.StopLevel() > prevShort {
				t.Fatalf("immediate=%v bar %d: short stop loosened %f -> %f", immediate, i, prevShort, short.StopLevel())
			}
			prevLong, prevShort = long.StopLevel(), short.StopLevel()
		}
	}
}

func TestMaxDrawdownPct(t *testing.T) {
	em := NewExitManager(Position{Direction: types.Long, EntryPrice: 100, InitialStop: 50, ATR: 5},
		Policy{TrailMult: 100})

	// Price dips to 90 (worst), then recovers
	em.Check(bar(100, 105, 90, 102))
	em.Check(bar(102, 108, 98, 106))

	// (100 - 90) / 100 = 0.10
	if dd := em.MaxDrawdownPct(); math.Abs(dd-0.10) > 0.001 {
		t.Errorf("MaxDrawdownPct = %f, want 0.10", dd)
	}
}

func TestMaxProfitPctShort(t *testing.T) {
	em := NewExitManager(Position{Direction: types.Short, EntryPrice: 100, InitialStop: 150, ATR: 5},
		Policy{TrailMult: 100})

	em.Check(bar(100, 104, 80, 85))
	em.Check(bar(85, 95, 84, 90))

	// (100 - 80) / 100 = 0.20
	if mfe := em.MaxProfitPct(); math.Abs(mfe-0.20) > 0.001 {
		t.Errorf("MaxProfitPct = %f, want 0.20", mfe)
	}
	if mae := em.MaxDrawdownPct(); math.Abs(mae-0.04) > 0.001 {
		t.Errorf("MaxDrawdownPct = %f, want 0.04", mae)
	}
}

func TestPnLStdNotEnoughBars(t *testing.T) {
	em := NewExitManager(Position{Direction: types.Long, EntryPrice: 100, InitialStop: 50, ATR: 5},
		Policy{TrailMult: 100})

	// Only 1 bar
	em.Check(bar(100, 105, 98, 102))
	if std := em.PnLStd(); std != 0.0 {
		t.Errorf("PnLStd with 1 bar should be 0, got %f", std)
	}
	em.Check(bar(102, 108, 99, 105))
	if std := em.PnLStd(); math.Abs(std-0.015) > 1e-9 {
		t.Errorf("PnLStd = %f, want 0.015", std)
	}
}

func uptrendEntry() Position {
	return Position{
		Direction:   types.Long,
		EntryIndex:  70,
		EntryPrice:  122.061,
		InitialStop: 117.17142857142857,
		Quantity:    306,
		ATR:         2.6571428571428575,
		Slip:        0.061,
	}
}

func TestSimulateTrailingStop(t *testing.T) {
	exit := Simulate(synth.Uptrend(200), uptrendEntry(), Policy{TrailMult: 1.5, Horizon: 20})

	if exit.Reason != types.ExitTrailingStop {
		t.Fatalf("Reason = %s, want trailing_stop", exit.Reason)
	}
	if exit.Index != 80 {
		t.Errorf("Index = %d, want 80", exit.Index)
	}
	// Candle 80 opens at 131 above the stop: 131 - 0.061.
	if math.Abs(exit.Price-130.939) > 1e-9 {
		t.Errorf("Price = %f, want 130.939", exit.Price)
	}
	if exit.BarsHeld != 10 {
		t.Errorf("BarsHeld = %d, want 10", exit.BarsHeld)
	}
	if exit.FinalStop <= uptrendEntry().InitialStop {
		t.Errorf("FinalStop %f did not trail above the initial stop", exit.FinalStop)
	}
	if exit.MaxProfit <= 0 {
		t.Errorf("MaxProfit = %f, want > 0", exit.MaxProfit)
	}
}

func TestSimulateLosingStop(t *testing.T) {
	candles := synth.Series(200, 100, func(day int) synth.Step {
		if day == 71 {
			return synth.Step{Delta: -11, Volume: 1000}
		}
		return synth.UptrendStep(day)
	})

	exit := Simulate(candles, uptrendEntry(), Policy{TrailMult: 1.5, Horizon: 20})
	if exit.Reason != types.ExitTrailingStop || exit.Index != 71 {
		t.Fatalf("exit = %+v, want trailing_stop at 71", exit)
	}
	if math.Abs(exit.Price-121.939) > 1e-9 {
		t.Errorf("Price = %f, want 121.939", exit.Price)
	}
	if exit.MaxAdverse <= 0 {
		t.Errorf("MaxAdverse = %f, want > 0", exit.MaxAdverse)
	}
}

func TestSimulateHorizonAndEndOfData(t *testing.T) {
	// A steady rise never pulls back to a 7.5 trail.
	candles := synth.Series(60, 100, func(int) synth.Step { return synth.Step{Delta: 1, Volume: 1000} })
	pos := Position{Direction: types.Long, EntryIndex: 10, EntryPrice: 111, InitialStop: 100, Quantity: 1, ATR: 5, Slip: 0.05}
	policy := Policy{TrailMult: 1.5, Horizon: 20}

	exit := Simulate(candles, pos, policy)
	if exit.Reason != types.ExitHorizon || exit.Index != 30 {
		t.Fatalf("exit = %+v, want horizon at 30", exit)
	}
	// Marked out at the close with no slippage.
	if exit.Price != 131 {
		t.Errorf("Price = %f, want 131", exit.Price)
	}
	if exit.BarsHeld != 20 {
		t.Errorf("BarsHeld = %d, want 20", exit.BarsHeld)
	}

	pos.EntryIndex = 50
	exit = Simulate(candles, pos, policy)
	if exit.Reason != types.ExitEndOfData || exit.Index != 59 || exit.Price != 160 {
		t.Errorf("exit = %+v, want end_of_data at 59 / 160", exit)
	}

	// No horizon: runs to the end of the series.
	pos.EntryIndex = 10
	exit = Simulate(candles, pos, Policy{TrailMult: 1.5})
	if exit.Reason != types.ExitEndOfData || exit.Index != 59 {
		t.Errorf("exit = %+v, want end_of_data at 59", exit)
	}

	// Entered on the final candle: closed immediately at that close.
	pos.EntryIndex = 59
	exit = Simulate(candles, pos, policy)
	if exit.Reason != types.ExitEndOfData || exit.Index != 59 || exit.BarsHeld != 0 {
		t.Errorf("exit = %+v, want immediate end_of_data", exit)
	}
}
