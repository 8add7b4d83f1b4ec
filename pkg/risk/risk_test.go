package risk

import (
	"math"
	"testing"
)

func TestSize(t *testing.T) {
	s := Sizer{RiskPerTrade: 0.003}

	// 1500 budget over 4.8895714 per unit -> 306 units.
	got, reason := s.Size(122.061, 117.17142857142857, 500000)
	if reason != OK {
		t.Fatalf("unexpected rejection %q", reason)
	}
	if got.Quantity != 306 {
		t.Errorf("Quantity = %d, want 306", got.Quantity)
	}
	if math.Abs(got.Amount-1500) > 1e-9 {
		t.Errorf("Amount = %f, want 1500", got.Amount)
	}
	if math.Abs(got.PerUnit-4.889571428571429) > 1e-9 {
		t.Errorf("PerUnit = %f, want 4.889571", got.PerUnit)
	}
}

func TestSizeShortUsesAbsoluteDistance(t *testing.T) {
	s := Sizer{RiskPerTrade: 0.01}
	got, reason := s.Size(100, 105, 10000)
	if reason != OK || got.Quantity != 20 {
		t.Errorf("Size = %+v reason %q, want 20 units", got, reason)
	}
}

func TestSizeRejectsZeroRisk(t *testing.T) {
	s := Sizer{RiskPerTrade: 0.003}
	if _, reason := s.Size(100, 100, 500000); reason != RejectRisk {
		t.Errorf("reason = %q, want risk", reason)
	}
	if _, reason := s.Size(100, math.NaN(), 500000); reason != RejectRisk {
		t.Errorf("NaN stop: reason = %q, want risk", reason)
	}
}

func TestSizeRejectsZeroQuantity(t *testing.T) {
	s := Sizer{RiskPerTrade: 0.003}
	// 30 budget cannot cover 50 per unit.
	got, reason := s.Size(1000, 950, 10000)
	if reason != RejectQuantity {
		t.Errorf("reason = %q, want quantity", reason)
	}
	if got.Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", got.Quantity)
	}
}

func TestSizeCapsQuantity(t *testing.T) {
	s := Sizer{RiskPerTrade: 0.01}
	// 1e10 budget over 0.5 per unit would be 2e10 units.
	got, reason := s.Size(100, 99.5, 1e12)
	if reason != OK {
		t.Fatalf("unexpected rejection %q", reason)
	}
	if got.Quantity != math.MaxInt32 {
		t.Errorf("Quantity = %d, want %d", got.Quantity, math.MaxInt32)
	}
	want := float64(math.MaxInt32) * 0.5
	if got.Amount != want {
		t.Errorf("Amount = %f, want %f", got.Amount, want)
	}
}
