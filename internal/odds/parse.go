package odds

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOdds reads user-entered odds text in the given format and returns
// decimal odds. Accepted inputs look like "+110", "-125", "2.10" or "5/2".
func ParseOdds(format Format, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty %s odds", ErrInvalidOdds, format)
	}

	switch format {
	case FormatAmerican:
		american, err := ParseAmerican(raw)
		if err != nil {
			return 0, err
		}
		return AmericanToDecimal(american)

	case FormatDecimal:
		decimal, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: decimal %q: %v", ErrInvalidOdds, raw, err)
		}
		if !validDecimal(decimal) {
			return 0, fmt.Errorf("%w: decimal %v must be > 1", ErrInvalidOdds, decimal)
		}
		return decimal, nil

	case FormatFractional:
		return FractionalToDecimal(raw)

	default:
		return 0, fmt.Errorf("%w: unknown format %q", ErrInvalidOdds, format)
	}
}

// ParseAmerican reads American odds text. A leading '+' is optional and
// integral values written with a fractional part ("110.0") are accepted.
func ParseAmerican(raw string) (int, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "+")

	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: american %q: %v", ErrInvalidOdds, raw, err)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%w: american %q is not a whole number", ErrInvalidOdds, raw)
	}
	return int(f), nil
}

func parseFraction(fractional string) (int64, int64, error) {
	numStr, denomStr, ok := strings.Cut(strings.TrimSpace(fractional), "/")
	if !ok {
		return 0, 0, fmt.Errorf("%w: fractional %q must look like n/d", ErrInvalidOdds, fractional)
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil || num < 0 {
		return 0, 0, fmt.Errorf("%w: fractional numerator %q", ErrInvalidOdds, numStr)
	}
	denom, err := strconv.ParseInt(strings.TrimSpace(denomStr), 10, 64)
	if err != nil || denom <= 0 {
		return 0, 0, fmt.Errorf("%w: fractional denominator %q", ErrInvalidOdds, denomStr)
	}

	return num, denom, nil
}
