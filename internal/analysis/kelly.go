package analysis

import "math"

// KellyResult is a Kelly criterion stake recommendation.
type KellyResult struct {
	WinProbability     float64 `json:"win_probability"`
	ImpliedProbability float64 `json:"implied_probability"`
	Fraction           float64 `json:"fraction"` // Raw Kelly fraction, may be negative
	Stake              float64 `json:"stake"`    // Recommended stake, never negative
}

// DefaultWinProbability is the win probability used when the bettor has no
// estimate of their own: the price's implied probability. Kelly at this
// probability recommends (almost exactly) nothing.
func DefaultWinProbability(decimalOdds float64) (float64, error) {
	if err := checkDecimal(decimalOdds); err != nil {
		return 0, err
	}
	return 1 / decimalOdds, nil
}

// KellyStake computes the Kelly criterion bet size
// Kelly formula: f* = (b * p - q) / b
// where: p = probability of winning, q = 1-p, b = decimal odds - 1
//
// stake = max(0, f* * bankroll). With no edge f* is ~0 and so is the stake.
func KellyStake(bankroll, decimalOdds, winProb float64) (KellyResult, error) {
	if err := checkStake(bankroll); err != nil {
		return KellyResult{}, err
	}
	if err := checkDecimal(decimalOdds); err != nil {
		return KellyResult{}, err
	}
	if err := checkProbability(winProb); err != nil {
		return KellyResult{}, err
	}

	p := winProb
	q := 1.0 - p
	b := decimalOdds - 1

	fraction := (b*p - q) / b
	stake := math.Max(0, fraction*bankroll)
	if err := checkFinite(fraction, stake); err != nil {
		return KellyResult{}, err
	}

	return KellyResult{
		WinProbability:     winProb,
		ImpliedProbability: 1 / decimalOdds,
		Fraction:           fraction,
		Stake:              stake,
	}, nil
}

// ScaleKelly applies a fractional-Kelly multiplier (e.g., 0.25 for quarter
// Kelly) to a recommendation. Multipliers outside (0, 1] leave it unchanged.
func ScaleKelly(result KellyResult, multiplier float64) KellyResult {
	if multiplier <= 0 || multiplier > 1 {
		return result
	}
	result.Stake *= multiplier
	return result
}
