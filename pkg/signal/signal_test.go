package signal

import (
	"math"
	"testing"

	"github.com/algomatic/regime-backtest/internal/synth"
	"github.com/algomatic/regime-backtest/pkg/indicators"
	"github.com/algomatic/regime-backtest/pkg/regime"
	"github.com/algomatic/regime-backtest/pkg/types"
)

func defaultGenerator() *Generator {
	return NewGenerator(Config{
		Indicators:  indicators.DefaultParams(),
		Regimes:     regime.DefaultTable(),
		Slippage:    0.0005,
		StopATRMult: 0.5,
	})
}

func evaluate(s Signaler, window []types.Candle) (Decision, Reason) {
	return s.Evaluate(window, s.Regime(window))
}

func TestGeneratorLongOnPullback(t *testing.T) {
	g := defaultGenerator()
	candles := synth.Uptrend(200)

	d, reason := evaluate(g, candles[10:71])
	if reason != Accept {
		t.Fatalf("expected accept, got %q", reason)
	}
	if d.Direction != types.Long {
		t.Errorf("Direction = %s, want LONG", d.Direction)
	}
	if d.Regime.Label != regime.Trending {
		t.Errorf("Regime = %s, want TRENDING", d.Regime.Label)
	}
	// close 122, slip 0.061 against the buyer
	if math.Abs(d.EntryPrice-122.061) > 1e-9 {
		t.Errorf("EntryPrice = %f, want 122.061", d.EntryPrice)
	}
	if math.Abs(d.Slip-0.061) > 1e-9 {
		t.Errorf("Slip = %f, want 0.061", d.Slip)
	}
	// swing low 118.5 minus half an ATR of 2.657142857
	if math.Abs(d.Stop-117.17142857142857) > 1e-9 {
		t.Errorf("Stop = %f, want 117.171428571", d.Stop)
	}
	if d.Stop >= d.EntryPrice {
		t.Errorf("long stop %f not below entry %f", d.Stop, d.EntryPrice)
	}
}

func TestGeneratorShortOnRally(t *testing.T) {
	g := defaultGenerator()
	candles := synth.Downtrend(200)

	d, reason := evaluate(g, candles[10:71])
	if reason != Accept {
		t.Fatalf("expected accept, got %q", reason)
	}
	if d.Direction != types.Short {
		t.Errorf("Direction = %s, want SHORT", d.Direction)
	}
	if math.Abs(d.EntryPrice-277.861) > 1e-9 {
		t.Errorf("EntryPrice = %f, want 277.861", d.EntryPrice)
	}
	if math.Abs(d.Stop-282.4857142857143) > 1e-9 {
		t.Errorf("Stop = %f, want 282.485714286", d.Stop)
	}
}

func TestGeneratorRejections(t *testing.T) {
	g := defaultGenerator()
	up := synth.Uptrend(200)

	if _, reason := evaluate(g, up[9:70]); reason != RejectPullback {
		t.Errorf("rally candle: reason = %q, want pullback", reason)
	}
	if _, reason := evaluate(g, synth.Flat(61, 100)); reason != RejectRegime {
		t.Errorf("flat: reason = %q, want regime", reason)
	}

	// Force a regime that trades but demands more quality than 0.88.
	strict := regime.DefaultTable()
	strict.Trending.MinQuality = 0.95
	g = NewGenerator(Config{Indicators: indicators.DefaultParams(), Regimes: strict, Slippage: 0.0005, StopATRMult: 0.5})
	if _, reason := evaluate(g, up[10:71]); reason != RejectQuality {
		t.Errorf("strict quality: reason = %q, want quality", reason)
	}

	steep := regime.DefaultTable()
	steep.Trending.MinSlope = 0.05
	g = NewGenerator(Config{Indicators: indicators.DefaultParams(), Regimes: steep, Slippage: 0.0005, StopATRMult: 0.5})
	if _, reason := evaluate(g, up[10:71]); reason != RejectSlope {
		t.Errorf("steep slope: reason = %q, want slope", reason)
	}
}

func TestGeneratorNeutralTrend(t *testing.T) {
	// A table that lets every regime trade with no slope floor, so the flat
	// series reaches the trend gate.
	open := regime.DefaultTable().WithFixedThresholds(0, 0)
	g := NewGenerator(Config{Indicators: indicators.DefaultParams(), Regimes: open, StopATRMult: 0.5})
	if _, reason := evaluate(g, synth.Flat(61, 100)); reason != RejectTrend {
		t.Errorf("reason = %q, want trend", reason)
	}
}

func TestGeneratorIsPure(t *testing.T) {
	g := defaultGenerator()
	window := synth.Uptrend(200)[10:71]
	a, ra := evaluate(g, window)
	b, rb := evaluate(g, window)
	if a != b || ra != rb {
		t.Errorf("repeated evaluation differs: %+v vs %+v", a, b)
	}
}

func TestCrossover(t *testing.T) {
	c := NewCrossover(DefaultCrossoverConfig())
	up := synth.Uptrend(200)

	// Candle 69 closes at 128 above EMA9 (~124.84) above EMA21 (~122.38);
	// the last 14 steps have a DX of ~41.
	d, reason := evaluate(c, up[9:70])
	if reason != Accept {
		t.Fatalf("expected accept, got %q", reason)
	}
	if d.Direction != types.Long {
		t.Errorf("Direction = %s, want LONG", d.Direction)
	}
	if math.Abs(d.Stop-(128-2*2.3285714285714283)) > 1e-9 {
		t.Errorf("Stop = %f, want close - 2*ATR", d.Stop)
	}
	if math.Abs(d.EntryPrice-128.064) > 1e-9 {
		t.Errorf("EntryPrice = %f, want 128.064", d.EntryPrice)
	}

	// The pullback candle drags the single-window ADX below 20.
	if _, reason := evaluate(c, up[10:71]); reason != RejectRegime {
		t.Errorf("pullback candle: reason = %q, want regime", reason)
	}
}
