package analysis

import "math"

// ArbitrageResult is the stake split across both sides of a binary market.
// When Exists is false the prices leave no guaranteed profit and the stake
// fields are zero.
type ArbitrageResult struct {
	Exists       bool    `json:"exists"`
	TotalImplied float64 `json:"total_implied"` // p1 + p2; < 1 means arbitrage
	StakeA       float64 `json:"stake_a"`
	StakeB       float64 `json:"stake_b"`
	Profit       float64 `json:"profit"`
	ProfitPct    float64 `json:"profit_pct"`
}

// Arbitrage allocates a total stake across two sides so both payouts match.
// p_i = 1 / D_i
// stake_i = S * p_i / (p1 + p2)
// profit = min(stake1 * D1, stake2 * D2) - S
//
// Equal payouts are the profit-maximising split for a fixed total stake.
func Arbitrage(decimalA, decimalB, stake float64) (ArbitrageResult, error) {
	if err := checkDecimal(decimalA); err != nil {
		return ArbitrageResult{}, err
	}
	if err := checkDecimal(decimalB); err != nil {
		return ArbitrageResult{}, err
	}
	if err := checkStake(stake); err != nil {
		return ArbitrageResult{}, err
	}

	probA := 1 / decimalA
	probB := 1 / decimalB
	total := probA + probB

	if total >= 1 {
		return ArbitrageResult{TotalImplied: total}, nil
	}

	stakeA := stake * probA / total
	stakeB := stake * probB / total
	profit := math.Min(stakeA*decimalA, stakeB*decimalB) - stake
	if err := checkFinite(stakeA, stakeB, profit); err != nil {
		return ArbitrageResult{}, err
	}

	return ArbitrageResult{
		Exists:       true,
		TotalImplied: total,
		StakeA:       stakeA,
		StakeB:       stakeB,
		Profit:       profit,
		ProfitPct:    profit / stake * 100,
	}, nil
}
