package odds

import (
	"errors"
	"fmt"
	"math"

	"sports-analytics/internal/mathutil"
)

// ErrInvalidOdds is returned for any odds value outside its representation's domain.
var ErrInvalidOdds = errors.New("invalid odds")

// fractionalDenominator bounds the denominator used when rendering decimal odds
// as a fraction. Output like 1.333 → "333/1000" is accepted in exchange for
// never running a continued-fraction search.
const fractionalDenominator = 1000

// maxAmerican caps the magnitude DecimalToAmerican will produce so the result
// always fits an int on every platform.
const maxAmerican = 1_000_000_000

// Format names an odds representation.
type Format string

const (
	FormatAmerican   Format = "american"
	FormatDecimal    Format = "decimal"
	FormatFractional Format = "fractional"
)

// Valid reports whether f is one of the known formats.
func (f Format) Valid() bool {
	switch f {
	case FormatAmerican, FormatDecimal, FormatFractional:
		return true
	}
	return false
}

// Conversion holds one price in every representation.
type Conversion struct {
	American           int     `json:"american"`
	Decimal            float64 `json:"decimal"`
	Fractional         string  `json:"fractional"`
	ImpliedProbability float64 `json:"implied_probability"`
}

// AmericanToDecimal converts American odds to decimal odds
// American +150 → Decimal 2.50
// American -150 → Decimal 1.667
//
// American prices have magnitude of at least 100; anything else, zero
// included, is rejected.
func AmericanToDecimal(american int) (float64, error) {
	if american > -100 && american < 100 {
		return 0, fmt.Errorf("%w: american %d must be <= -100 or >= 100", ErrInvalidOdds, american)
	}

	if american > 0 {
		return 1 + float64(american)/100.0, nil
	}
	return 1 - 100.0/float64(american), nil
}

// DecimalToAmerican converts decimal odds to American odds
// Decimal 2.50 → American +150
// Decimal 1.667 → American -150
func DecimalToAmerican(decimal float64) (int, error) {
	if !validDecimal(decimal) {
		return 0, fmt.Errorf("%w: decimal %v must be > 1", ErrInvalidOdds, decimal)
	}

	var american float64
	if decimal >= 2 {
		american = math.Round((decimal - 1) * 100)
	} else {
		american = math.Round(-100 / (decimal - 1))
	}
	if math.Abs(american) > maxAmerican {
		return 0, fmt.Errorf("%w: decimal %v out of american range", ErrInvalidOdds, decimal)
	}
	return int(american), nil
}

// DecimalToFractional renders decimal odds as a reduced "num/denom" profit ratio.
// The fraction is approximated over a denominator of 1000 before reducing,
// so 2.5 → "3/2" but 1.333 → "333/1000". Prices shorter than 1.0005 still
// pay something and render as the smallest step, "1/1000".
func DecimalToFractional(decimal float64) (string, error) {
	if !validDecimal(decimal) {
		return "", fmt.Errorf("%w: decimal %v must be > 1", ErrInvalidOdds, decimal)
	}

	numerator := int64(math.Round((decimal - 1) * fractionalDenominator))
	if numerator == 0 {
		numerator = 1
	}
	divisor := mathutil.GCD(numerator, fractionalDenominator)

	return fmt.Sprintf("%d/%d", numerator/divisor, fractionalDenominator/divisor), nil
}

// FractionalToDecimal converts "num/denom" to decimal odds (num/denom + 1).
func FractionalToDecimal(fractional string) (float64, error) {
	num, denom, err := parseFraction(fractional)
	if err != nil {
		return 0, err
	}

	decimal := float64(num)/float64(denom) + 1
	if !validDecimal(decimal) {
		return 0, fmt.Errorf("%w: fractional %q pays nothing", ErrInvalidOdds, fractional)
	}
	return decimal, nil
}

// ImpliedFromAmerican converts American odds to implied probability
// Example: -150 → 0.6 (60%), +150 → 0.4 (40%)
func ImpliedFromAmerican(american int) (float64, error) {
	if american > -100 && american < 100 {
		return 0, fmt.Errorf("%w: american %d must be <= -100 or >= 100", ErrInvalidOdds, american)
	}

	if american > 0 {
		// Underdog: probability = 100 / (odds + 100)
		return 100.0 / (float64(american) + 100.0), nil
	}
	// Favorite: probability = |odds| / (|odds| + 100)
	abs := -float64(american)
	return abs / (abs + 100.0), nil
}

// ImpliedFromDecimal converts decimal odds to implied probability (1/decimal).
func ImpliedFromDecimal(decimal float64) (float64, error) {
	if !validDecimal(decimal) {
		return 0, fmt.Errorf("%w: decimal %v must be > 1", ErrInvalidOdds, decimal)
	}
	return 1 / decimal, nil
}

// ImpliedFromFractional converts "num/denom" odds to implied probability.
func ImpliedFromFractional(fractional string) (float64, error) {
	decimal, err := FractionalToDecimal(fractional)
	if err != nil {
		return 0, err
	}
	return 1 / decimal, nil
}

// Convert expresses decimal odds in every supported representation.
func Convert(decimal float64) (Conversion, error) {
	american, err := DecimalToAmerican(decimal)
	if err != nil {
		return Conversion{}, err
	}
	fractional, err := DecimalToFractional(decimal)
	if err != nil {
		return Conversion{}, err
	}

	return Conversion{
		American:           american,
		Decimal:            decimal,
		Fractional:         fractional,
		ImpliedProbability: 1 / decimal,
	}, nil
}

func validDecimal(decimal float64) bool {
	return mathutil.IsFinite(decimal) && decimal > 1
}
