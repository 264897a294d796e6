package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oddsdesk/oddsdesk/internal/cache"
	"github.com/oddsdesk/oddsdesk/internal/detector"
	"github.com/oddsdesk/oddsdesk/internal/hub"
	"github.com/oddsdesk/oddsdesk/internal/ledger"
	"github.com/oddsdesk/oddsdesk/pkg/models"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	cache    *cache.Orchestrator
	detector *detector.Detector
	settler  *ledger.Settler
	hub      *hub.Hub
}

// New creates a new handler with dependencies
func New(cacheOrch *cache.Orchestrator, det *detector.Detector, settler *ledger.Settler, h *hub.Hub) *Handler {
	return &Handler{
		cache:    cacheOrch,
		detector: det,
		settler:  settler,
		hub:      h,
	}
}

// HealthCheck returns the health status of the service
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.settler.Ping(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "ledger store unhealthy", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "oddsdesk",
	})
}

// userID resolves the requesting user. Auth is handled upstream; the chat
// layer forwards the identity it authenticated.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Printf("error encoding response: %v\n", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		fmt.Printf("[http] %d %s: %v\n", status, message, err)
	}
	respondJSON(w, status, map[string]interface{}{"error": message})
}

// respondDomainError maps the core error taxonomy onto HTTP statuses.
// Rejected data surfaces as 503 with an explicit message so the chat layer
// can say "I don't have sufficiently fresh data" instead of guessing.
func respondDomainError(w http.ResponseWriter, err error) {
	var ambiguous *models.AmbiguousMatchError
	switch {
	case errors.As(err, &ambiguous):
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":      ambiguous.Error(),
			"candidates": ambiguous.Candidates,
		})
	case errors.Is(err, models.ErrSettlementConflict):
		respondError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, models.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, models.ErrDataRejected):
		respondError(w, http.StatusServiceUnavailable, "no sufficiently fresh data available", err)
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err)
	}
}

func parseIntParam(r *http.Request, name string, defaultValue int) int {
	if value := r.URL.Query().Get(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
