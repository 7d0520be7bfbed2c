package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"sports-analytics/internal/analysis"
	"sports-analytics/internal/mathutil"
	"sports-analytics/internal/odds"
)

// calculate decodes a Req, runs fn and writes its result. Malformed JSON is
// a 400; input the calculator rejects is a 422.
func calculate[Req any](h *Handler, name string, fn func(Req) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := decodeJSON(w, r, &req); err != nil {
			h.metrics.RecordCalculator(name, "bad_request")
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		resp, err := fn(req)
		if err != nil {
			h.metrics.RecordCalculator(name, "invalid")
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		h.metrics.RecordCalculator(name, "ok")
		respondJSON(w, http.StatusOK, resp)
	}
}

// oddsValue accepts a price as a JSON string ("+150", "5/2") or number (2.5).
type oddsValue string

func (v *oddsValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = oddsValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("odds must be a string or number: %w", err)
	}
	*v = oddsValue(n.String())
	return nil
}

// parseOdds reads one price in the request's format, American by default.
func parseOdds(format odds.Format, raw oddsValue, field string) (float64, error) {
	if format == "" {
		format = odds.FormatAmerican
	}
	d, err := odds.ParseOdds(format, string(raw))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// winProbability converts an optional percentage; nil means "use the price".
func winProbability(pct *float64, decimalOdds float64) (float64, error) {
	if pct == nil {
		return analysis.DefaultWinProbability(decimalOdds)
	}
	return analysis.PercentToProbability(*pct)
}

type oddsRequest struct {
	Format odds.Format `json:"format"`
	Odds   oddsValue   `json:"odds"`
}

// Convert expresses one price in every odds format.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	calculate(h, "convert", func(req oddsRequest) (interface{}, error) {
		d, err := parseOdds(req.Format, req.Odds, "odds")
		if err != nil {
			return nil, err
		}
		c, err := odds.Convert(d)
		if err != nil {
			return nil, err
		}
		c.Decimal = mathutil.Round(c.Decimal, 4)
		c.ImpliedProbability = mathutil.Round(c.ImpliedProbability, 6)
		return c, nil
	})(w, r)
}

// Implied returns the win probability a price implies.
func (h *Handler) Implied(w http.ResponseWriter, r *http.Request) {
	calculate(h, "implied", func(req oddsRequest) (interface{}, error) {
		d, err := parseOdds(req.Format, req.Odds, "odds")
		if err != nil {
			return nil, err
		}
		p, err := odds.ImpliedFromDecimal(d)
		if err != nil {
			return nil, err
		}
		return map[string]float64{
			"implied_probability": mathutil.Round(p, 6),
			"implied_pct":         mathutil.Round(p*100, 2),
		}, nil
	})(w, r)
}

type evRequest struct {
	Format odds.Format `json:"format"`
	Odds   oddsValue   `json:"odds"`
	WinPct float64     `json:"win_pct"`
	Stake  float64     `json:"stake"`
}

type evResponse struct {
	EV        decimal.Decimal `json:"ev"`
	EVPercent float64         `json:"ev_percent"`
	Edge      float64         `json:"edge"`
	Payout    decimal.Decimal `json:"payout"`
}

// ExpectedValue prices a bet against the bettor's own win probability.
func (h *Handler) ExpectedValue(w http.ResponseWriter, r *http.Request) {
	calculate(h, "ev", func(req evRequest) (interface{}, error) {
		d, err := parseOdds(req.Format, req.Odds, "odds")
		if err != nil {
			return nil, err
		}
		p, err := analysis.PercentToProbability(req.WinPct)
		if err != nil {
			return nil, err
		}
		res, err := analysis.ExpectedValue(d, p, req.Stake)
		if err != nil {
			return nil, err
		}
		edge, err := analysis.Edge(d, p)
		if err != nil {
			return nil, err
		}
		return evResponse{
			EV:        mathutil.Cents(res.EV),
			EVPercent: mathutil.Round(res.EVPercent, 2),
			Edge:      mathutil.Round(edge, 6),
			Payout:    mathutil.Cents(d * req.Stake),
		}, nil
	})(w, r)
}

type arbitrageRequest struct {
	Format odds.Format `json:"format"`
	OddsA  oddsValue   `json:"odds_a"`
	OddsB  oddsValue   `json:"odds_b"`
	Stake  float64     `json:"stake"`
}

type arbitrageResponse struct {
	Exists       bool            `json:"exists"`
	TotalImplied float64         `json:"total_implied"`
	StakeA       decimal.Decimal `json:"stake_a"`
	StakeB       decimal.Decimal `json:"stake_b"`
	Profit       decimal.Decimal `json:"profit"`
	ProfitPct    float64         `json:"profit_pct"`
}

// Arbitrage splits a stake across two prices for a guaranteed return.
func (h *Handler) Arbitrage(w http.ResponseWriter, r *http.Request) {
	calculate(h, "arbitrage", func(req arbitrageRequest) (interface{}, error) {
		a, err := parseOdds(req.Format, req.OddsA, "odds_a")
		if err != nil {
			return nil, err
		}
		b, err := parseOdds(req.Format, req.OddsB, "odds_b")
		if err != nil {
			return nil, err
		}
		res, err := analysis.Arbitrage(a, b, req.Stake)
		if err != nil {
			return nil, err
		}
		return arbitrageResponse{
			Exists:       res.Exists,
			TotalImplied: mathutil.Round(res.TotalImplied, 6),
			StakeA:       mathutil.Cents(res.StakeA),
			StakeB:       mathutil.Cents(res.StakeB),
			Profit:       mathutil.Cents(res.Profit),
			ProfitPct:    mathutil.Round(res.ProfitPct, 2),
		}, nil
	})(w, r)
}

type kellyRequest struct {
	Format        odds.Format `json:"format"`
	Odds          oddsValue   `json:"odds"`
	WinPct        *float64    `json:"win_pct"`  // Omitted: the price's implied probability
	Bankroll      float64     `json:"bankroll"` // Omitted: server default
	KellyFraction float64     `json:"kelly_fraction"`
}

type kellyResponse struct {
	WinProbability     float64         `json:"win_probability"`
	ImpliedProbability float64         `json:"implied_probability"`
	Fraction           float64         `json:"fraction"`
	KellyFraction      float64         `json:"kelly_fraction"`
	FullStake          decimal.Decimal `json:"full_stake"`
	Stake              decimal.Decimal `json:"stake"`
}

// Kelly sizes a stake with the (fractional) Kelly criterion.
func (h *Handler) Kelly(w http.ResponseWriter, r *http.Request) {
	calculate(h, "kelly", func(req kellyRequest) (interface{}, error) {
		d, err := parseOdds(req.Format, req.Odds, "odds")
		if err != nil {
			return nil, err
		}
		p, err := winProbability(req.WinPct, d)
		if err != nil {
			return nil, err
		}
		bankroll := req.Bankroll
		if bankroll == 0 {
			bankroll = h.cfg.DefaultBankroll
		}
		multiplier := req.KellyFraction
		if multiplier == 0 {
			multiplier = h.cfg.KellyFraction
		}
		if multiplier == 0 {
			multiplier = 1
		}
		if multiplier < 0 || multiplier > 1 {
			return nil, fmt.Errorf("kelly_fraction %v must be within (0, 1]", multiplier)
		}

		full, err := analysis.KellyStake(bankroll, d, p)
		if err != nil {
			return nil, err
		}
		scaled := analysis.ScaleKelly(full, multiplier)
		return kellyResponse{
			WinProbability:     mathutil.Round(full.WinProbability, 6),
			ImpliedProbability: mathutil.Round(full.ImpliedProbability, 6),
			Fraction:           mathutil.Round(full.Fraction, 6),
			KellyFraction:      multiplier,
			FullStake:          mathutil.Cents(full.Stake),
			Stake:              mathutil.Cents(scaled.Stake),
		}, nil
	})(w, r)
}

type hedgeRequest struct {
	Format        odds.Format `json:"format"`
	OriginalOdds  oddsValue   `json:"original_odds"`
	OriginalStake float64     `json:"original_stake"`
	HedgeOdds     oddsValue   `json:"hedge_odds"`
}

type hedgeResponse struct {
	HedgeStake           decimal.Decimal `json:"hedge_stake"`
	ProfitIfOriginalWins decimal.Decimal `json:"profit_if_original_wins"`
	ProfitIfHedgeWins    decimal.Decimal `json:"profit_if_hedge_wins"`
	Guaranteed           decimal.Decimal `json:"guaranteed"`
}

func newHedgeResponse(res analysis.HedgeResult) hedgeResponse {
	return hedgeResponse{
		HedgeStake:           mathutil.Cents(res.HedgeStake),
		ProfitIfOriginalWins: mathutil.Cents(res.ProfitIfOriginalWins),
		ProfitIfHedgeWins:    mathutil.Cents(res.ProfitIfHedgeWins),
		Guaranteed:           mathutil.Cents(res.Guaranteed),
	}
}

// Hedge sizes the opposite-side bet that equalises an open bet's payout.
func (h *Handler) Hedge(w http.ResponseWriter, r *http.Request) {
	calculate(h, "hedge", func(req hedgeRequest) (interface{}, error) {
		orig, err := parseOdds(req.Format, req.OriginalOdds, "original_odds")
		if err != nil {
			return nil, err
		}
		hedge, err := parseOdds(req.Format, req.HedgeOdds, "hedge_odds")
		if err != nil {
			return nil, err
		}
		res, err := analysis.HedgeStake(req.OriginalStake, orig, hedge)
		if err != nil {
			return nil, err
		}
		return newHedgeResponse(res), nil
	})(w, r)
}

type parlayRequest struct {
	Format odds.Format `json:"format"`
	Legs   []oddsValue `json:"legs"`
	Stake  float64     `json:"stake"`
}

type parlayResponse struct {
	DecimalOdds        float64         `json:"decimal_odds"`
	American           int             `json:"american"`
	ImpliedProbability float64         `json:"implied_probability"`
	Payout             decimal.Decimal `json:"payout"`
	Profit             decimal.Decimal `json:"profit"`
}

// Parlay combines legs into one price and payout.
func (h *Handler) Parlay(w http.ResponseWriter, r *http.Request) {
	calculate(h, "parlay", func(req parlayRequest) (interface{}, error) {
		legs := make([]float64, 0, len(req.Legs))
		for i, raw := range req.Legs {
			d, err := parseOdds(req.Format, raw, fmt.Sprintf("legs[%d]", i))
			if err != nil {
				return nil, err
			}
			legs = append(legs, d)
		}
		res, err := analysis.Parlay(legs, req.Stake)
		if err != nil {
			return nil, err
		}
		return parlayResponse{
			DecimalOdds:        mathutil.Round(res.DecimalOdds, 4),
			American:           res.American,
			ImpliedProbability: mathutil.Round(res.ImpliedProbability, 6),
			Payout:             mathutil.Cents(res.Payout),
			Profit:             mathutil.Cents(res.Profit),
		}, nil
	})(w, r)
}

type noVigRequest struct {
	Format odds.Format `json:"format"`
	Method string      `json:"method"` // "multiplicative" (default) or "power"
	OddsA  oddsValue   `json:"odds_a"`
	OddsB  oddsValue   `json:"odds_b"`
}

// NoVig strips the bookmaker margin from a two-way market.
func (h *Handler) NoVig(w http.ResponseWriter, r *http.Request) {
	calculate(h, "no_vig", func(req noVigRequest) (interface{}, error) {
		method, err := odds.ParseVigMethod(req.Method)
		if err != nil {
			return nil, err
		}
		a, err := parseOdds(req.Format, req.OddsA, "odds_a")
		if err != nil {
			return nil, err
		}
		b, err := parseOdds(req.Format, req.OddsB, "odds_b")
		if err != nil {
			return nil, err
		}
		line, err := odds.NoVigWith(method, a, b)
		if err != nil {
			return nil, err
		}
		line.VigPct = mathutil.Round(line.VigPct, 2)
		return line, nil
	})(w, r)
}
