package bets

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"sports-analytics/internal/analysis"
	"sports-analytics/internal/mathutil"
	"sports-analytics/internal/odds"
)

// GameLine is one bookmaker's current moneyline on a game.
type GameLine struct {
	GameID       string `json:"game_id"`
	Bookmaker    string `json:"bookie"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
	HomeAmerican int    `json:"home_line"`
	AwayAmerican int    `json:"away_line"`
}

// ArbitrageAlert is raised when the opposite side of a user's bet is now
// priced well enough to lock in a profit.
type ArbitrageAlert struct {
	Bet              Bet             `json:"bet"`
	Bookmaker        string          `json:"bookie"`
	OppositeTeam     string          `json:"opposite_team"`
	OppositeAmerican int             `json:"opposite_line"`
	Return           float64         `json:"return"` // (1 - T) / T, T = total implied probability
	HedgeStake       decimal.Decimal `json:"hedge_stake"`
	Guaranteed       decimal.Decimal `json:"guaranteed"`
}

// Message renders the alert for a human.
func (a ArbitrageAlert) Message() string {
	return fmt.Sprintf("You bet $%s on %s at %+d. %s has %+d for %s. Bet $%s on %s to secure a %.2f%% profit!",
		a.Bet.Stake.StringFixed(2), a.Bet.Team, a.Bet.American,
		a.Bookmaker, a.OppositeAmerican, a.OppositeTeam,
		a.HedgeStake.StringFixed(2), a.OppositeTeam, a.Return*100)
}

// Decimal returns the bet's price in decimal odds.
func (b Bet) Decimal() (float64, error) {
	return odds.AmericanToDecimal(b.American)
}

// ImpliedProbability returns the win probability implied by the bet's price,
// or 0 when the stored line is invalid.
func (b Bet) ImpliedProbability() float64 {
	p, err := odds.ImpliedFromAmerican(b.American)
	if err != nil {
		return 0
	}
	return p
}

// PotentialPayout is the total returned (stake included) if the bet wins.
func (b Bet) PotentialPayout() decimal.Decimal {
	d, err := b.Decimal()
	if err != nil {
		return decimal.Zero
	}
	return b.Stake.Mul(decimal.NewFromFloat(d)).Round(2)
}

// SuggestHedge sizes a bet on the other side at hedgeAmerican that equalises
// the payout whichever side wins.
func SuggestHedge(b Bet, hedgeAmerican int) (analysis.HedgeResult, error) {
	original, err := b.Decimal()
	if err != nil {
		return analysis.HedgeResult{}, err
	}
	hedge, err := odds.AmericanToDecimal(hedgeAmerican)
	if err != nil {
		return analysis.HedgeResult{}, err
	}
	return analysis.HedgeStake(b.Stake.InexactFloat64(), original, hedge)
}

// opposite returns the price and name of the team the bet is against, or
// false when the bet's team is not playing in this line.
func opposite(b Bet, line GameLine) (string, int, bool) {
	switch {
	case sameTeam(b.Team, line.HomeTeam):
		return line.AwayTeam, line.AwayAmerican, true
	case sameTeam(b.Team, line.AwayTeam):
		return line.HomeTeam, line.HomeAmerican, true
	}
	return "", 0, false
}

// CheckArbitrage prices the bet against the opposite team's current line.
// It alerts when the two prices together imply less than 100% and the
// resulting return reaches the bet's alert threshold.
func CheckArbitrage(b Bet, line GameLine) (ArbitrageAlert, bool) {
	if line.GameID != b.GameID {
		return ArbitrageAlert{}, false
	}
	team, american, ok := opposite(b, line)
	if !ok {
		return ArbitrageAlert{}, false
	}

	userImplied, err := odds.ImpliedFromAmerican(b.American)
	if err != nil {
		return ArbitrageAlert{}, false
	}
	oppImplied, err := odds.ImpliedFromAmerican(american)
	if err != nil {
		return ArbitrageAlert{}, false
	}

	total := userImplied + oppImplied
	if total >= 1 {
		return ArbitrageAlert{}, false
	}
	ret := (1 - total) / total
	if ret < float64(b.AlertThreshold)/100 {
		return ArbitrageAlert{}, false
	}

	hedge, err := SuggestHedge(b, american)
	if err != nil {
		return ArbitrageAlert{}, false
	}

	return ArbitrageAlert{
		Bet:              b,
		Bookmaker:        line.Bookmaker,
		OppositeTeam:     team,
		OppositeAmerican: american,
		Return:           ret,
		HedgeStake:       mathutil.Cents(hedge.HedgeStake),
		Guaranteed:       mathutil.Cents(hedge.Guaranteed),
	}, true
}

// ScanBets checks every active moneyline bet against each line for its game
// and returns the alerts, largest return first.
func ScanBets(bets []Bet, lines []GameLine) []ArbitrageAlert {
	byGame := make(map[string][]GameLine)
	for _, l := range lines {
		byGame[l.GameID] = append(byGame[l.GameID], l)
	}

	var alerts []ArbitrageAlert
	for _, b := range bets {
		if !b.Active || b.BetType != BetTypeMoneyline {
			continue
		}
		for _, l := range byGame[b.GameID] {
			if alert, ok := CheckArbitrage(b, l); ok {
				alerts = append(alerts, alert)
			}
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Return > alerts[j].Return
	})
	return alerts
}
