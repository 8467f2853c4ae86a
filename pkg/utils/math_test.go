package utils

import (
	"math"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{0, 1, 10, 1},
		{5, 1, 10, 5},
		{11, 1, 10, 10},
		{3, 1, 1, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Fatalf("Clamp(%d,%d,%d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestBinomialStdErr(t *testing.T) {
	if got := BinomialStdErr(0.5, 100); math.Abs(got-0.05) > 1e-12 {
		t.Fatalf("expected 0.05, got %v", got)
	}
	for _, p := range []float64{0, 1} {
		if got := BinomialStdErr(p, 100); got != 0 {
			t.Fatalf("degenerate proportion %v should have zero error, got %v", p, got)
		}
	}
	if got := BinomialStdErr(0.5, 0); got != 0 {
		t.Fatalf("n=0 should give 0, got %v", got)
	}
}

func TestRound(t *testing.T) {
	if got := Round(0.123456, 3); got != 0.123 {
		t.Fatalf("expected 0.123, got %v", got)
	}
	if got := Round(0.98765, 2); got != 0.99 {
		t.Fatalf("expected 0.99, got %v", got)
	}
}
