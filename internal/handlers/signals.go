package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oddsdesk/oddsdesk/internal/cache"
	"github.com/oddsdesk/oddsdesk/internal/hub"
	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// GetDiscrepancies runs a discrepancy detection pass over fresh-enough odds.
// Query params: sport (required), min_books (optional, default from config).
func (h *Handler) GetDiscrepancies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sport := r.URL.Query().Get("sport")
	if sport == "" {
		respondError(w, http.StatusBadRequest, "sport is required", nil)
		return
	}

	minBooks := parseIntParam(r, "min_books", 0)

	records, freshness, err := h.detector.DetectDiscrepancies(ctx, sport, minBooks)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	for _, record := range records {
		h.hub.Broadcast(hub.Event{
			Type:      "discrepancy",
			Sport:     sport,
			Payload:   record,
			Timestamp: time.Now(),
		})
	}

	response := map[string]interface{}{
		"discrepancies": records,
		"count":         len(records),
	}
	stampFreshness(response, freshness)

	respondJSON(w, http.StatusOK, response)
}

// GetSharpSignals runs a sharp-money detection pass over fresh-enough odds.
// Query params: sport (required).
func (h *Handler) GetSharpSignals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	sport := r.URL.Query().Get("sport")
	if sport == "" {
		respondError(w, http.StatusBadRequest, "sport is required", nil)
		return
	}

	signals, freshness, err := h.detector.DetectSharpSignals(ctx, sport)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	for _, signal := range signals {
		h.hub.Broadcast(hub.Event{
			Type:      "sharp_signal",
			Sport:     sport,
			Payload:   signal,
			Timestamp: time.Now(),
		})
	}

	response := map[string]interface{}{
		"signals": signals,
		"count":   len(signals),
	}
	stampFreshness(response, freshness)

	respondJSON(w, http.StatusOK, response)
}

// stampFreshness tags a detector response with the tier and age of the odds
// it was computed from. Callers acting on non-fresh tiers must surface the
// staleness to the user, same as raw data reads.
func stampFreshness(response map[string]interface{}, freshness cache.Result) {
	response["tier"] = freshness.Tier
	response["age_seconds"] = freshness.AgeSeconds
	if freshness.Tier != models.TierFresh {
		response["staleness_notice"] = fmt.Sprintf("computed from odds %d seconds old (%s)", freshness.AgeSeconds, freshness.Tier)
	}
	if freshness.RefreshErr != nil {
		response["refresh_error"] = freshness.RefreshErr.Error()
	}
}
