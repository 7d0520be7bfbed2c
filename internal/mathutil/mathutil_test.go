package mathutil

import (
	"math"
	"testing"
)

func TestGCD(t *testing.T) {
	tests := []struct {
		a, b     int64
		expected int64
	}{
		{1000, 1500, 500},
		{100, 1000, 100},
		{7, 1000, 1},
		{0, 1000, 1000},
		{-12, 18, 6},
		{0, 0, 0},
	}

	for _, tt := range tests {
		if got := GCD(tt.a, tt.b); got != tt.expected {
			t.Errorf("GCD(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.expected)
		}
	}
}

func TestCents(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{48.837209, "48.84"},
		{51.162790, "51.16"},
		{5, "5"},
		{-0.004, "0"},
		{7.4418, "7.44"},
		{math.Inf(1), "0"},
		{math.NaN(), "0"},
	}

	for _, tt := range tests {
		if got := Cents(tt.in).String(); got != tt.expected {
			t.Errorf("Cents(%v) = %s, want %s", tt.in, got, tt.expected)
		}
	}
}

func TestRound(t *testing.T) {
	if got := Round(2.10000000001, 4); got != 2.1 {
		t.Errorf("Round = %v, want 2.1", got)
	}
	if got := Round(0.47619, 3); math.Abs(got-0.476) > 1e-12 {
		t.Errorf("Round = %v, want 0.476", got)
	}
	if got := Round(math.Inf(-1), 2); !math.IsInf(got, -1) {
		t.Errorf("Round(-Inf) = %v, want -Inf", got)
	}
	if got := Round(math.NaN(), 2); !math.IsNaN(got) {
		t.Errorf("Round(NaN) = %v, want NaN", got)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) {
		t.Error("1.5 should be finite")
	}
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("NaN and Inf should not be finite")
	}
}
