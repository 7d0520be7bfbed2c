package mathutil

import (
	"math"

	"github.com/shopspring/decimal"
)

// GCD returns the greatest common divisor of a and b (always non-negative).
// GCD(0, 0) is 0.
func GCD(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Cents rounds a dollar amount to whole cents for display.
// Rounding is half away from zero, matching what a bettor expects on a slip.
// NaN and ±Inf have no decimal form and come back as zero.
func Cents(v float64) decimal.Decimal {
	if !IsFinite(v) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(2)
}

// Round rounds v to the given number of decimal places. Non-finite values
// are returned unchanged.
func Round(v float64, places int32) float64 {
	if !IsFinite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
