package alerts

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the alert feed
type Handlers struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandlers creates a new alerts handlers instance
func NewHandlers(repo *Repository, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo: repo,
		log:  log.With().Str("handler", "alerts").Logger(),
	}
}

// HandleRecent returns recently fired alerts, newest first
// GET /api/alerts?limit=N
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	alerts, err := h.repo.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load alerts")
		http.Error(w, "Failed to load alerts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(alerts); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
