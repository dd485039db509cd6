package filings

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the filings API
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new filings handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "filings").Logger(),
	}
}

// HandleRecent returns recent SEC filings for a ticker
// GET /api/filings/{ticker}
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	filings, cached, err := h.service.RecentFilings(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to fetch filings")
		http.Error(w, "Failed to fetch filings", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"ticker":  ticker,
		"cached":  cached,
		"filings": filings,
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// HandleInvalidate drops the cached filings for a ticker
// DELETE /api/filings/{ticker}/cache
func (h *Handlers) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	if err := h.service.Invalidate(ticker); err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to invalidate filings cache")
		http.Error(w, "Failed to invalidate filings cache", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "invalidated"})
}
