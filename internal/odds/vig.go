package odds

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// VigMethod selects how the margin is spread across the two sides.
type VigMethod string

const (
	// VigMultiplicative scales both sides by the same factor.
	VigMultiplicative VigMethod = "multiplicative"
	// VigPower raises both sides to a common exponent, taking more from the longshot.
	VigPower VigMethod = "power"
)

// ErrUnknownVigMethod is returned by ParseVigMethod for unsupported names.
var ErrUnknownVigMethod = errors.New("unknown vig method")

// ParseVigMethod reads a method name. Empty means multiplicative.
func ParseVigMethod(s string) (VigMethod, error) {
	switch m := VigMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return VigMultiplicative, nil
	case VigMultiplicative, VigPower:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (want multiplicative or power)", ErrUnknownVigMethod, s)
}

// Remove de-margins two implied probabilities with the method.
func (m VigMethod) Remove(impliedA, impliedB float64) (float64, float64) {
	if m == VigPower {
		return RemoveVigPower(impliedA, impliedB)
	}
	return RemoveVig(impliedA, impliedB)
}

// FairLine is a two-way market with the bookmaker margin removed.
type FairLine struct {
	ProbA     float64 `json:"fair_probability_a"`
	ProbB     float64 `json:"fair_probability_b"`
	DecimalA  float64 `json:"fair_decimal_a"`
	DecimalB  float64 `json:"fair_decimal_b"`
	AmericanA int     `json:"fair_american_a"`
	AmericanB int     `json:"fair_american_b"`
	VigPct    float64 `json:"vig_pct"` // Overround removed, in percent
}

// RemoveVig removes the vig/juice from a two-way market
// Returns the true probabilities that sum to 1.0
//
// Method: Multiplicative vig removal (proportional)
// trueProbA = impliedA / (impliedA + impliedB)
// trueProbB = impliedB / (impliedA + impliedB)
func RemoveVig(impliedA, impliedB float64) (float64, float64) {
	if impliedA <= 0 || impliedB <= 0 {
		return 0, 0
	}

	total := impliedA + impliedB
	return impliedA / total, impliedB / total
}

// Overround returns the combined implied probability above 1, in percent.
// -110/-110 → 4.76. A negative result means the two prices underround.
func Overround(impliedA, impliedB float64) float64 {
	return (impliedA + impliedB - 1) * 100
}

// NoVig de-margins decimal odds for the two sides of one market with the
// multiplicative method.
func NoVig(decimalA, decimalB float64) (FairLine, error) {
	return NoVigWith(VigMultiplicative, decimalA, decimalB)
}

// NoVigWith de-margins decimal odds with the given method.
// Fair probabilities always sum to 1, and fair odds are their reciprocals.
func NoVigWith(method VigMethod, decimalA, decimalB float64) (FairLine, error) {
	impliedA, err := ImpliedFromDecimal(decimalA)
	if err != nil {
		return FairLine{}, fmt.Errorf("side A: %w", err)
	}
	impliedB, err := ImpliedFromDecimal(decimalB)
	if err != nil {
		return FairLine{}, fmt.Errorf("side B: %w", err)
	}

	fairA, fairB := method.Remove(impliedA, impliedB)
	if fairA <= 0 || fairB <= 0 {
		return FairLine{}, fmt.Errorf("%w: no fair line for %v/%v", ErrInvalidOdds, decimalA, decimalB)
	}

	line := FairLine{
		ProbA:    fairA,
		ProbB:    fairB,
		DecimalA: 1 / fairA,
		DecimalB: 1 / fairB,
		VigPct:   Overround(impliedA, impliedB),
	}

	if line.AmericanA, err = DecimalToAmerican(line.DecimalA); err != nil {
		return FairLine{}, fmt.Errorf("side A fair odds: %w", err)
	}
	if line.AmericanB, err = DecimalToAmerican(line.DecimalB); err != nil {
		return FairLine{}, fmt.Errorf("side B fair odds: %w", err)
	}

	return line, nil
}

// RemoveVigPower removes vig using the Power method
// This accounts for the favorite-longshot bias: longshots are systematically overbet.
// Finds k such that p1^k + p2^k = 1, then:
// - trueProb1 = p1^k
// - trueProb2 = p2^k
// This deflates longshot probabilities more than favorites.
func RemoveVigPower(impliedA, impliedB float64) (float64, float64) {
	if impliedA <= 0 || impliedB <= 0 || impliedA >= 1 || impliedB >= 1 {
		return 0, 0
	}

	sum := impliedA + impliedB
	if math.Abs(sum-1.0) < 1e-9 {
		return impliedA, impliedB
	}

	k := findPowerExponent(impliedA, impliedB)
	return math.Pow(impliedA, k), math.Pow(impliedB, k)
}

// findPowerExponent finds k such that p1^k + p2^k = 1 using bisection search.
// For 0 < p < 1 a higher k shrinks p^k, so overround markets need k > 1
// and underround markets need k < 1.
func findPowerExponent(p1, p2 float64) float64 {
	const (
		tolerance = 1e-9
		maxIters  = 100
	)

	low, high := 0.01, 10.0

	for i := 0; i < maxIters; i++ {
		mid := (low + high) / 2
		currentSum := math.Pow(p1, mid) + math.Pow(p2, mid)

		if math.Abs(currentSum-1.0) < tolerance {
			return mid
		}

		if currentSum > 1 {
			low = mid
		} else {
			high = mid
		}
	}

	return (low + high) / 2
}
