package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// GetData serves a cached data domain tagged with its freshness tier.
// Query params: sport (required), date (optional, narrows the logical key).
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	domain := models.Domain(chi.URLParam(r, "domain"))
	sport := r.URL.Query().Get("sport")
	if sport == "" {
		respondError(w, http.StatusBadRequest, "sport is required", nil)
		return
	}

	key := sport
	if date := r.URL.Query().Get("date"); date != "" {
		key = fmt.Sprintf("%s:%s", sport, date)
	}

	result, err := h.cache.Get(ctx, domain, key)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	response := map[string]interface{}{
		"payload":     json.RawMessage(result.Payload),
		"tier":        result.Tier,
		"age_seconds": result.AgeSeconds,
	}
	// Callers acting on non-fresh tiers must surface the staleness to the user
	if result.Tier != models.TierFresh {
		response["staleness_notice"] = fmt.Sprintf("data is %d seconds old (%s)", result.AgeSeconds, result.Tier)
	}
	if result.RefreshErr != nil {
		response["refresh_error"] = result.RefreshErr.Error()
	}

	respondJSON(w, http.StatusOK, response)
}
