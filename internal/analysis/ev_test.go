package analysis

import (
	"errors"
	"math"
	"testing"

	"sports-analytics/internal/odds"
)

func TestExpectedValue(t *testing.T) {
	tests := []struct {
		name        string
		decimalOdds float64
		winProb     float64
		stake       float64
		expectedEV  float64
		expectedPct float64
	}{
		{
			name:        "Fair coin at evens",
			decimalOdds: 2.0,
			winProb:     0.5,
			stake:       100,
			expectedEV:  0,
			expectedPct: 0,
		},
		{
			name:        "Plus money with a coin flip",
			decimalOdds: 2.5,
			winProb:     0.5,
			stake:       100,
			expectedEV:  25, // 0.5 * 150 - 0.5 * 100
			expectedPct: 25,
		},
		{
			name:        "Favourite priced too short",
			decimalOdds: 1.5,
			winProb:     0.6,
			stake:       10,
			expectedEV:  -1, // 0.6 * 5 - 0.4 * 10
			expectedPct: -10,
		},
		{
			name:        "Certain win",
			decimalOdds: 1.8,
			winProb:     1,
			stake:       50,
			expectedEV:  40,
			expectedPct: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExpectedValue(tt.decimalOdds, tt.winProb, tt.stake)
			if err != nil {
				t.Fatalf("ExpectedValue() error = %v", err)
			}
			if math.Abs(result.EV-tt.expectedEV) > 1e-9 {
				t.Errorf("EV = %v, want %v", result.EV, tt.expectedEV)
			}
			if math.Abs(result.EVPercent-tt.expectedPct) > 1e-9 {
				t.Errorf("EVPercent = %v, want %v", result.EVPercent, tt.expectedPct)
			}
		})
	}
}

func TestExpectedValueInvalid(t *testing.T) {
	tests := []struct {
		name        string
		decimalOdds float64
		winProb     float64
		stake       float64
		want        error
	}{
		{"Decimal of one", 1.0, 0.5, 100, odds.ErrInvalidOdds},
		{"NaN decimal", math.NaN(), 0.5, 100, odds.ErrInvalidOdds},
		{"Probability above one", 2.0, 1.2, 100, ErrInvalidProbability},
		{"Negative probability", 2.0, -0.1, 100, ErrInvalidProbability},
		{"Zero stake", 2.0, 0.5, 0, ErrInvalidStake},
		{"Infinite stake", 2.0, 0.5, math.Inf(1), ErrInvalidStake},
		{"Profit overflows", 1e308, 0.5, 1e10, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpectedValue(tt.decimalOdds, tt.winProb, tt.stake)
			if !errors.Is(err, tt.want) {
				t.Errorf("ExpectedValue() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEdge(t *testing.T) {
	edge, err := Edge(2.2, 0.5)
	if err != nil {
		t.Fatalf("Edge() error = %v", err)
	}
	if math.Abs(edge-0.1) > 1e-9 {
		t.Errorf("Edge(2.2, 0.5) = %v, want 0.1", edge)
	}

	if _, err := Edge(math.MaxFloat64, 1); err != nil {
		t.Errorf("Edge(MaxFloat64, 1) error = %v, want nil", err)
	}
}

func TestPercentToProbability(t *testing.T) {
	tests := []struct {
		pct     float64
		want    float64
		wantErr bool
	}{
		{0, 0, false},
		{55, 0.55, false},
		{100, 1, false},
		{-1, 0, true},
		{100.5, 0, true},
		{math.NaN(), 0, true},
	}

	for _, tt := range tests {
		got, err := PercentToProbability(tt.pct)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidProbability) {
				t.Errorf("PercentToProbability(%v) error = %v, want ErrInvalidProbability", tt.pct, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("PercentToProbability(%v) error = %v", tt.pct, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("PercentToProbability(%v) = %v, want %v", tt.pct, got, tt.want)
		}
	}
}
