package analysis

import (
	"errors"
	"fmt"

	"sports-analytics/internal/mathutil"
	"sports-analytics/internal/odds"
)

var (
	// ErrInvalidStake is returned when a stake or bankroll is not a positive amount.
	ErrInvalidStake = errors.New("invalid stake")

	// ErrInvalidProbability is returned for win probabilities outside [0, 1].
	ErrInvalidProbability = errors.New("invalid probability")

	// ErrNoLegs is returned for a parlay without legs.
	ErrNoLegs = errors.New("parlay needs at least one leg")

	// ErrOutOfRange is returned when valid inputs produce a result too large
	// to represent.
	ErrOutOfRange = errors.New("result out of range")
)

// PercentToProbability converts a user-entered win percentage (0-100) to a
// probability. Out-of-range input is rejected, not clamped.
func PercentToProbability(pct float64) (float64, error) {
	if !mathutil.IsFinite(pct) || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("%w: %v%% must be within [0, 100]", ErrInvalidProbability, pct)
	}
	return pct / 100, nil
}

func checkProbability(p float64) error {
	if !mathutil.IsFinite(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %v must be within [0, 1]", ErrInvalidProbability, p)
	}
	return nil
}

func checkStake(stake float64) error {
	if !mathutil.IsFinite(stake) || stake <= 0 {
		return fmt.Errorf("%w: %v must be positive", ErrInvalidStake, stake)
	}
	return nil
}

func checkDecimal(decimal float64) error {
	if !mathutil.IsFinite(decimal) || decimal <= 1 {
		return fmt.Errorf("%w: decimal %v must be > 1", odds.ErrInvalidOdds, decimal)
	}
	return nil
}

// checkFinite rejects results that overflowed to ±Inf or NaN.
func checkFinite(values ...float64) error {
	for _, v := range values {
		if !mathutil.IsFinite(v) {
			return ErrOutOfRange
		}
	}
	return nil
}
