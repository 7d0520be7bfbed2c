package handlers

import (
	"net/http"

	"sports-analytics/internal/analysis"
	"sports-analytics/internal/odds"
)

type scanArbitrageRequest struct {
	Quotes       []analysis.Quote `json:"quotes"`
	MinProfitPct *float64         `json:"min_profit_pct"`
	MaxOdds      int              `json:"max_odds"`
	TotalStake   float64          `json:"total_stake"`
}

// ScanArbitrage finds two-book arbitrages across the posted quotes.
func (h *Handler) ScanArbitrage(w http.ResponseWriter, r *http.Request) {
	var req scanArbitrageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := analysis.DefaultScanConfig()
	cfg.MinProfitPct = h.cfg.MinArbProfitPct
	if req.MinProfitPct != nil {
		cfg.MinProfitPct = *req.MinProfitPct
	}
	if req.MaxOdds > 0 {
		cfg.MaxOdds = req.MaxOdds
	}
	if req.TotalStake > 0 {
		cfg.TotalStake = req.TotalStake
	}

	opps := analysis.ScanArbitrage(req.Quotes, cfg)
	for _, opp := range opps {
		h.notifier.AlertOpportunity(opp)
	}
	h.notifier.LogScan(len(req.Quotes), len(opps), 0)

	if opps == nil {
		opps = []analysis.ArbitrageOpportunity{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opps,
		"count":         len(opps),
	})
}

type scanValueRequest struct {
	Lines    []analysis.TwoWayLine `json:"lines"`
	MinBooks int                   `json:"min_books"`
	Stake    float64               `json:"stake"`
	Method   string                `json:"method"` // "multiplicative" (default) or "power"
}

// ScanValue finds prices that beat the consensus no-vig line.
func (h *Handler) ScanValue(w http.ResponseWriter, r *http.Request) {
	var req scanValueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	method, err := odds.ParseVigMethod(req.Method)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.MinBooks <= 0 {
		req.MinBooks = 2
	}

	valueBets := analysis.FindValueBets(req.Lines, analysis.ValueConfig{
		MinBooks: req.MinBooks,
		Stake:    req.Stake,
		Method:   method,
	})
	for _, v := range valueBets {
		h.notifier.AlertValueBet(v)
	}
	h.notifier.LogScan(len(req.Lines), 0, len(valueBets))

	if valueBets == nil {
		valueBets = []analysis.ValueBet{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"value_bets": valueBets,
		"count":      len(valueBets),
	})
}
