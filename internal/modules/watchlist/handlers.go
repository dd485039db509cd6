package watchlist

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the watchlist API
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new watchlist handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "watchlist").Logger(),
	}
}

// stockRequest is the request body for create and update operations
type stockRequest struct {
	Ticker          string  `json:"ticker"`
	IntrinsicValue  float64 `json:"intrinsic_value"`
	ConvictionScore int     `json:"conviction_score"`
}

// HandleList returns all watched stocks
// GET /api/watchlist
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.All()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list watchlist")
		http.Error(w, "Failed to list watchlist", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, stocks)
}

// HandleCreate adds a stock to the watchlist
// POST /api/watchlist
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}
	if req.IntrinsicValue < 0 {
		http.Error(w, "Intrinsic value must not be negative", http.StatusBadRequest)
		return
	}

	stock, err := h.service.Add(req.Ticker, req.IntrinsicValue, req.ConvictionScore)
	if errors.Is(err, ErrDuplicateTicker) {
		http.Error(w, "Ticker already watched", http.StatusConflict)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to add stock")
		http.Error(w, "Failed to add stock", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, stock)
}

// HandleGet returns a single watched stock
// GET /api/watchlist/{ticker}
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	stock, err := h.service.Get(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get stock")
		http.Error(w, "Failed to get stock", http.StatusInternalServerError)
		return
	}

	if stock == nil {
		http.Error(w, "Stock not watched", http.StatusNotFound)
		return
	}

	h.writeJSON(w, stock)
}

// HandleUpdate changes intrinsic value and conviction score
// PUT /api/watchlist/{ticker}
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.IntrinsicValue < 0 {
		http.Error(w, "Intrinsic value must not be negative", http.StatusBadRequest)
		return
	}

	stock, err := h.service.Update(ticker, req.IntrinsicValue, req.ConvictionScore)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to update stock")
		http.Error(w, "Failed to update stock", http.StatusInternalServerError)
		return
	}

	if stock == nil {
		http.Error(w, "Stock not watched", http.StatusNotFound)
		return
	}

	h.writeJSON(w, stock)
}

// HandleDelete removes a stock from the watchlist
// DELETE /api/watchlist/{ticker}
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	removed, err := h.service.Remove(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to remove stock")
		http.Error(w, "Failed to remove stock", http.StatusInternalServerError)
		return
	}

	if !removed {
		http.Error(w, "Stock not watched", http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]string{"status": "removed", "ticker": NormalizeTicker(ticker)})
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
