package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/oddsdesk/oddsdesk/internal/ledger"
	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// CreateBet logs a new pending bet against the user's virtual bankroll
func (h *Handler) CreateBet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req struct {
		Amount      float64 `json:"amount"`
		Odds        int     `json:"odds"`
		Description string  `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bet, err := h.settler.LogBet(ctx, userID(r), req.Amount, req.Odds, req.Description)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, bet)
}

// GetBets retrieves the user's bets with optional filters
// Query params: status, limit, offset
func (h *Handler) GetBets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filters := ledger.BetFilters{
		Outcome: models.BetOutcome(r.URL.Query().Get("status")),
		Limit:   parseIntParam(r, "limit", 50),
		Offset:  parseIntParam(r, "offset", 0),
	}
	if filters.Limit > 500 {
		filters.Limit = 500
	}

	bets, err := h.settler.ListBets(ctx, userID(r), filters)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bets":   bets,
		"count":  len(bets),
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}

// GetBetSummary retrieves aggregate P&L statistics
func (h *Handler) GetBetSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	summary, err := h.settler.Summary(ctx, userID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// SettleBet settles a pending bet by reference, updating the bankroll
// atomically. An ambiguous reference returns 409 with the candidate list and
// performs no mutation.
func (h *Handler) SettleBet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req struct {
		BetRef       string   `json:"bet_ref"`
		Outcome      string   `json:"outcome"`
		ActualReturn *float64 `json:"actual_return,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.settler.Settle(ctx, userID(r), req.BetRef, models.BetOutcome(req.Outcome), req.ActualReturn)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetBankroll retrieves the current balance and recent ledger entries
func (h *Handler) GetBankroll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	balance, entries, err := h.settler.Bankroll(ctx, userID(r))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"balance": balance,
		"entries": entries,
	})
}

// CreateAdjustment applies a manual bankroll adjustment
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	entry, err := h.settler.Adjust(ctx, userID(r), req.Amount, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}
