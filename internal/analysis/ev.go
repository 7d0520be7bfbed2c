package analysis

// EVResult is the expected profit of a single bet.
type EVResult struct {
	EV        float64 `json:"ev"`         // Expected profit in stake currency
	EVPercent float64 `json:"ev_percent"` // EV as a percentage of stake
}

// ExpectedValue calculates the expected value of a bet
// EV = (winProb * profit) - ((1 - winProb) * stake)
// where profit = decimalOdds * stake - stake
func ExpectedValue(decimalOdds, winProb, stake float64) (EVResult, error) {
	if err := checkDecimal(decimalOdds); err != nil {
		return EVResult{}, err
	}
	if err := checkProbability(winProb); err != nil {
		return EVResult{}, err
	}
	if err := checkStake(stake); err != nil {
		return EVResult{}, err
	}

	profit := decimalOdds*stake - stake
	ev := winProb*profit - (1-winProb)*stake
	pct := ev / stake * 100
	if err := checkFinite(profit, ev, pct); err != nil {
		return EVResult{}, err
	}

	return EVResult{
		EV:        ev,
		EVPercent: pct,
	}, nil
}

// Edge returns how far a win probability sits above the probability implied
// by the price: (winProb * decimalOdds) - 1. Positive means +EV.
func Edge(decimalOdds, winProb float64) (float64, error) {
	if err := checkDecimal(decimalOdds); err != nil {
		return 0, err
	}
	if err := checkProbability(winProb); err != nil {
		return 0, err
	}
	edge := winProb*decimalOdds - 1
	if err := checkFinite(edge); err != nil {
		return 0, err
	}
	return edge, nil
}
