package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"sports-analytics/internal/bets"
	"sports-analytics/internal/logger"
	"sports-analytics/internal/odds"
)

func (h *Handler) respondBetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bets.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bets.ErrInvalidBet):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("bets: %v", err)
		respondError(w, http.StatusInternalServerError, "bet storage failed")
	}
}

// ListBets returns tracked bets, optionally for one game (?game_id=).
func (h *Handler) ListBets(w http.ResponseWriter, r *http.Request) {
	var (
		list []bets.Bet
		err  error
	)
	if gameID := r.URL.Query().Get("game_id"); gameID != "" {
		list, err = h.bets.ListBetsByGame(r.Context(), gameID)
	} else {
		list, err = h.bets.ListBets(r.Context())
	}
	if err != nil {
		h.respondBetError(w, err)
		return
	}
	if list == nil {
		list = []bets.Bet{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bets":  list,
		"count": len(list),
	})
}

// CreateBet starts tracking a bet.
func (h *Handler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req bets.Bet
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.bets.AddBet(r.Context(), req)
	if err != nil {
		h.respondBetError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetBet returns one tracked bet with its payout.
func (h *Handler) GetBet(w http.ResponseWriter, r *http.Request) {
	b, err := h.bets.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondBetError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bet":                 b,
		"potential_payout":    b.PotentialPayout(),
		"implied_probability": b.ImpliedProbability(),
	})
}

type updateBetRequest struct {
	Stake  *decimal.Decimal `json:"bet_amount"`
	Active *bool            `json:"is_active"`
}

// UpdateBet changes the stake and/or monitoring flag of a bet.
func (h *Handler) UpdateBet(w http.ResponseWriter, r *http.Request) {
	var req updateBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Stake == nil && req.Active == nil {
		respondError(w, http.StatusUnprocessableEntity, "nothing to update")
		return
	}

	id := chi.URLParam(r, "id")
	if req.Stake != nil {
		if err := h.bets.UpdateStake(r.Context(), id, *req.Stake); err != nil {
			h.respondBetError(w, err)
			return
		}
	}
	if req.Active != nil {
		if err := h.bets.SetActive(r.Context(), id, *req.Active); err != nil {
			h.respondBetError(w, err)
			return
		}
	}

	b, err := h.bets.GetBet(r.Context(), id)
	if err != nil {
		h.respondBetError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

// DeleteBet stops tracking a bet.
func (h *Handler) DeleteBet(w http.ResponseWriter, r *http.Request) {
	if err := h.bets.DeleteBet(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondBetError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type hedgeBetRequest struct {
	HedgeOdds oddsValue `json:"hedge_odds"` // American
}

// HedgeBet sizes a hedge for a tracked bet at the given opposite price.
func (h *Handler) HedgeBet(w http.ResponseWriter, r *http.Request) {
	var req hedgeBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	american, err := odds.ParseAmerican(string(req.HedgeOdds))
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	b, err := h.bets.GetBet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondBetError(w, err)
		return
	}

	res, err := bets.SuggestHedge(b, american)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.notifier.AlertHedge(b, american, res)
	respondJSON(w, http.StatusOK, newHedgeResponse(res))
}

type scanBetsRequest struct {
	Lines []bets.GameLine `json:"lines"`
}

// ScanBets checks active bets against current moneylines and returns the
// arbitrage alerts, largest return first.
func (h *Handler) ScanBets(w http.ResponseWriter, r *http.Request) {
	var req scanBetsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	active, err := h.bets.ListActiveBets(r.Context())
	if err != nil {
		h.respondBetError(w, err)
		return
	}

	found := bets.ScanBets(active, req.Lines)
	for _, a := range found {
		h.notifier.AlertBetArbitrage(a)
	}
	if found == nil {
		found = []bets.ArbitrageAlert{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": found,
		"count":  len(found),
	})
}
