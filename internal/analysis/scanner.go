package analysis

import (
	"sort"
	"strings"

	"sports-analytics/internal/odds"
)

// Quote is one bookmaker's price on one outcome of a two-outcome market
// (over/under, yes/no or two named sides).
type Quote struct {
	GameID    string `json:"game_id"`
	Market    string `json:"market"`           // e.g. "player_points", "h2h"
	Player    string `json:"player,omitempty"` // Empty for game-level markets
	Point     string `json:"point,omitempty"`  // Line for over/under markets
	Bookmaker string `json:"bookmaker"`
	Outcome   string `json:"outcome"`
	American  int    `json:"american"`
}

// MarketKey identifies the market a quote prices. Yes/no markets ignore the
// point so quotes from books that attach one still group together.
type MarketKey struct {
	GameID string `json:"game_id"`
	Market string `json:"market"`
	Player string `json:"player,omitempty"`
	Point  string `json:"point,omitempty"`
}

// ScanConfig bounds which opportunities ScanArbitrage reports.
type ScanConfig struct {
	MinProfitPct float64 // Minimum guaranteed profit, percent of total stake
	MaxOdds      int     // American prices above this are ignored; 0 = no limit
	TotalStake   float64 // Stake split across both legs
}

// DefaultScanConfig mirrors the backend scanner: 1% minimum, +50000 cap, $100 stake.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{MinProfitPct: 1, MaxOdds: 50000, TotalStake: 100}
}

// Leg is one side of a scanned opportunity.
type Leg struct {
	Outcome   string  `json:"outcome"`
	Bookmaker string  `json:"bookmaker"`
	American  int     `json:"american"`
	Decimal   float64 `json:"decimal"`
	Stake     float64 `json:"stake"`
}

// ArbitrageOpportunity is a market whose best prices guarantee a profit.
type ArbitrageOpportunity struct {
	Key       MarketKey `json:"key"`
	A         Leg       `json:"a"`
	B         Leg       `json:"b"`
	Profit    float64   `json:"profit"`
	ProfitPct float64   `json:"profit_pct"`
}

type bestPrice struct {
	bookmaker string
	american  int
}

func quoteKey(q Quote) MarketKey {
	key := MarketKey{GameID: q.GameID, Market: q.Market, Player: q.Player, Point: q.Point}
	switch strings.ToLower(q.Outcome) {
	case "yes", "no":
		key.Point = ""
	}
	return key
}

// ScanArbitrage groups quotes by market, takes the best price per outcome and
// reports every market where those prices form an arbitrage at least
// cfg.MinProfitPct deep. Results are sorted by ProfitPct, highest first.
func ScanArbitrage(quotes []Quote, cfg ScanConfig) []ArbitrageOpportunity {
	if cfg.TotalStake <= 0 {
		cfg.TotalStake = DefaultScanConfig().TotalStake
	}

	order := []MarketKey{}
	groups := map[MarketKey]map[string]bestPrice{}

	for _, q := range quotes {
		if q.American > -100 && q.American < 100 {
			continue
		}
		if cfg.MaxOdds > 0 && q.American > cfg.MaxOdds {
			continue
		}
		key := quoteKey(q)
		outcomes, ok := groups[key]
		if !ok {
			outcomes = map[string]bestPrice{}
			groups[key] = outcomes
			order = append(order, key)
		}
		outcome := strings.ToLower(q.Outcome)
		if cur, seen := outcomes[outcome]; !seen || q.American > cur.american {
			outcomes[outcome] = bestPrice{bookmaker: q.Bookmaker, american: q.American}
		}
	}

	var found []ArbitrageOpportunity
	for _, key := range order {
		outcomes := groups[key]
		if len(outcomes) != 2 || !pairedOutcomes(outcomes) {
			continue
		}

		names := make([]string, 0, 2)
		for name := range outcomes {
			names = append(names, name)
		}
		sort.Strings(names)

		a, b := outcomes[names[0]], outcomes[names[1]]
		decA, errA := odds.AmericanToDecimal(a.american)
		decB, errB := odds.AmericanToDecimal(b.american)
		if errA != nil || errB != nil {
			continue
		}

		arb, err := Arbitrage(decA, decB, cfg.TotalStake)
		if err != nil || !arb.Exists || arb.ProfitPct < cfg.MinProfitPct {
			continue
		}

		found = append(found, ArbitrageOpportunity{
			Key:       key,
			A:         Leg{Outcome: names[0], Bookmaker: a.bookmaker, American: a.american, Decimal: decA, Stake: arb.StakeA},
			B:         Leg{Outcome: names[1], Bookmaker: b.bookmaker, American: b.american, Decimal: decB, Stake: arb.StakeB},
			Profit:    arb.Profit,
			ProfitPct: arb.ProfitPct,
		})
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ProfitPct > found[j].ProfitPct
	})
	return found
}

// pairedOutcomes rejects mixed groupings such as {over, yes}.
func pairedOutcomes(outcomes map[string]bestPrice) bool {
	_, over := outcomes["over"]
	_, under := outcomes["under"]
	_, yes := outcomes["yes"]
	_, no := outcomes["no"]
	switch {
	case over || under:
		return over && under
	case yes || no:
		return yes && no
	}
	return true
}

// TwoWayLine is one bookmaker's prices on both sides of a market.
type TwoWayLine struct {
	GameID    string `json:"game_id"`
	Market    string `json:"market"`
	Bookmaker string `json:"bookmaker"`
	SideA     string `json:"side_a"`
	AmericanA int    `json:"american_a"`
	SideB     string `json:"side_b"`
	AmericanB int    `json:"american_b"`
}

// ValueBet is a price that beats the consensus fair probability.
type ValueBet struct {
	GameID             string  `json:"game_id"`
	Market             string  `json:"market"`
	Side               string  `json:"side"`
	Bookmaker          string  `json:"bookmaker"`
	American           int     `json:"american"`
	FairProbability    float64 `json:"fair_probability"`
	ImpliedProbability float64 `json:"implied_probability"`
	Overround          float64 `json:"overround"` // Average book margin, percent
	Books              int     `json:"books"`
	Edge               float64 `json:"edge"` // FairProbability * decimal - 1
	EV                 float64 `json:"ev"`
	EVPercent          float64 `json:"ev_percent"`
}

// ValueConfig bounds which markets FindValueBets prices.
type ValueConfig struct {
	MinBooks int            // Distinct bookmakers a market needs; < 1 means 1
	Stake    float64        // Stake the EV is quoted for; <= 0 means 100
	Method   odds.VigMethod // How the consensus margin is removed; empty means multiplicative
}

type lineGroup struct {
	gameID, market string
	sideA, sideB   string
	lines          []TwoWayLine
	books          map[string]struct{}
}

// FindValueBets averages each market's implied probabilities across books,
// removes the vig from that average to get a consensus fair line, then
// prices the best available odds on each side against it. Markets quoted by
// fewer than cfg.MinBooks distinct bookmakers are skipped. Only positive-EV
// bets are returned, sorted by EVPercent, highest first.
func FindValueBets(lines []TwoWayLine, cfg ValueConfig) []ValueBet {
	if cfg.MinBooks < 1 {
		cfg.MinBooks = 1
	}
	if cfg.Stake <= 0 {
		cfg.Stake = 100
	}
	if cfg.Method == "" {
		cfg.Method = odds.VigMultiplicative
	}

	type key struct{ gameID, market string }
	order := []key{}
	groups := map[key]*lineGroup{}

	for _, l := range lines {
		if _, err := odds.AmericanToDecimal(l.AmericanA); err != nil {
			continue
		}
		if _, err := odds.AmericanToDecimal(l.AmericanB); err != nil {
			continue
		}
		k := key{l.GameID, l.Market}
		g, ok := groups[k]
		if !ok {
			g = &lineGroup{gameID: l.GameID, market: l.Market, sideA: l.SideA, sideB: l.SideB, books: map[string]struct{}{}}
			groups[k] = g
			order = append(order, k)
		}
		g.lines = append(g.lines, l)
		g.books[l.Bookmaker] = struct{}{}
	}

	var bets []ValueBet
	for _, k := range order {
		g := groups[k]
		if len(g.books) < cfg.MinBooks {
			continue
		}
		bets = append(bets, valueBetsFor(g, cfg)...)
	}

	sort.SliceStable(bets, func(i, j int) bool {
		return bets[i].EVPercent > bets[j].EVPercent
	})
	return bets
}

func valueBetsFor(g *lineGroup, cfg ValueConfig) []ValueBet {
	var sumA, sumB float64
	bestA, bestB := g.lines[0], g.lines[0]
	for _, l := range g.lines {
		pA, _ := odds.ImpliedFromAmerican(l.AmericanA)
		pB, _ := odds.ImpliedFromAmerican(l.AmericanB)
		sumA += pA
		sumB += pB
		if l.AmericanA > bestA.AmericanA {
			bestA = l
		}
		if l.AmericanB > bestB.AmericanB {
			bestB = l
		}
	}

	n := float64(len(g.lines))
	fairA, fairB := cfg.Method.Remove(sumA/n, sumB/n)
	overround := odds.Overround(sumA/n, sumB/n)

	var bets []ValueBet
	sides := []struct {
		side      string
		bookmaker string
		american  int
		fair      float64
	}{
		{g.sideA, bestA.Bookmaker, bestA.AmericanA, fairA},
		{g.sideB, bestB.Bookmaker, bestB.AmericanB, fairB},
	}
	for _, s := range sides {
		dec, err := odds.AmericanToDecimal(s.american)
		if err != nil {
			continue
		}
		ev, err := ExpectedValue(dec, s.fair, cfg.Stake)
		if err != nil || ev.EV <= 0 {
			continue
		}
		edge, err := Edge(dec, s.fair)
		if err != nil {
			continue
		}
		bets = append(bets, ValueBet{
			GameID:             g.gameID,
			Market:             g.market,
			Side:               s.side,
			Bookmaker:          s.bookmaker,
			American:           s.american,
			FairProbability:    s.fair,
			ImpliedProbability: 1 / dec,
			Overround:          overround,
			Books:              len(g.books),
			Edge:               edge,
			EV:                 ev.EV,
			EVPercent:          ev.EVPercent,
		})
	}
	return bets
}
