package analysis

import (
	"fmt"

	"sports-analytics/internal/odds"
)

// ParlayResult is the combined price and payout of a multi-leg bet.
type ParlayResult struct {
	DecimalOdds        float64 `json:"decimal_odds"`
	American           int     `json:"american"`
	ImpliedProbability float64 `json:"implied_probability"`
	Payout             float64 `json:"payout"` // Includes the stake
	Profit             float64 `json:"profit"`
}

// Parlay combines per-leg decimal odds into one price.
// totalOdds = Π legs, payout = stake * totalOdds
func Parlay(legs []float64, stake float64) (ParlayResult, error) {
	if len(legs) == 0 {
		return ParlayResult{}, ErrNoLegs
	}
	if err := checkStake(stake); err != nil {
		return ParlayResult{}, err
	}

	total := 1.0
	for i, leg := range legs {
		if err := checkDecimal(leg); err != nil {
			return ParlayResult{}, fmt.Errorf("leg %d: %w", i+1, err)
		}
		total *= leg
	}
	payout := stake * total
	if err := checkFinite(total, payout); err != nil {
		return ParlayResult{}, err
	}

	american, err := odds.DecimalToAmerican(total)
	if err != nil {
		return ParlayResult{}, fmt.Errorf("combined odds: %w", err)
	}

	return ParlayResult{
		DecimalOdds:        total,
		American:           american,
		ImpliedProbability: 1 / total,
		Payout:             payout,
		Profit:             payout - stake,
	}, nil
}
