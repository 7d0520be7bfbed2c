package analysis

import "math"

// HedgeResult describes a hedge placed against an open bet.
type HedgeResult struct {
	HedgeStake           float64 `json:"hedge_stake"`
	ProfitIfOriginalWins float64 `json:"profit_if_original_wins"`
	ProfitIfHedgeWins    float64 `json:"profit_if_hedge_wins"`
	Guaranteed           float64 `json:"guaranteed"` // Worst case of the two; negative = locked-in loss
}

// HedgeStake sizes a bet on the opposite side so total payout is the same
// whichever side wins.
// hedge = S1 * D1 / D2
func HedgeStake(originalStake, originalDecimal, hedgeDecimal float64) (HedgeResult, error) {
	if err := checkStake(originalStake); err != nil {
		return HedgeResult{}, err
	}
	if err := checkDecimal(originalDecimal); err != nil {
		return HedgeResult{}, err
	}
	if err := checkDecimal(hedgeDecimal); err != nil {
		return HedgeResult{}, err
	}

	hedge := originalStake * originalDecimal / hedgeDecimal
	ifOriginal := originalStake*originalDecimal - originalStake - hedge
	ifHedge := hedge*hedgeDecimal - hedge - originalStake
	if err := checkFinite(hedge, ifOriginal, ifHedge); err != nil {
		return HedgeResult{}, err
	}

	return HedgeResult{
		HedgeStake:           hedge,
		ProfitIfOriginalWins: ifOriginal,
		ProfitIfHedgeWins:    ifHedge,
		Guaranteed:           math.Min(ifOriginal, ifHedge),
	}, nil
}
