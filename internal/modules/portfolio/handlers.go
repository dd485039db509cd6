package portfolio

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
)

// QuoteCache provides the last known quote for a ticker
type QuoteCache interface {
	Get(ticker string) (domain.Quote, bool)
}

// valuedHolding is a holding enriched with the latest cached quote
type valuedHolding struct {
	domain.Holding
	CurrentPrice   *float64 `json:"current_price,omitempty"`
	MarketValue    *float64 `json:"market_value,omitempty"`
	UnrealizedGain *float64 `json:"unrealized_gain,omitempty"`
}

// Handlers contains HTTP handlers for the portfolio API
type Handlers struct {
	repo   *Repository
	quotes QuoteCache
	log    zerolog.Logger
}

// NewHandlers creates a new portfolio handlers instance
func NewHandlers(repo *Repository, quotes QuoteCache, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo:   repo,
		quotes: quotes,
		log:    log.With().Str("handler", "portfolio").Logger(),
	}
}

type holdingRequest struct {
	Ticker    string  `json:"ticker"`
	Shares    float64 `json:"shares"`
	CostBasis float64 `json:"cost_basis"`
}

// HandleList returns all holdings with current valuation where a quote is
// cached.
// GET /api/portfolio
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.repo.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list holdings")
		http.Error(w, "Failed to list holdings", http.StatusInternalServerError)
		return
	}

	valued := make([]valuedHolding, 0, len(holdings))
	var totalValue, totalCost float64
	for _, holding := range holdings {
		v := valuedHolding{Holding: holding}
		totalCost += holding.CostBasis

		if quote, ok := h.quotes.Get(holding.Ticker); ok {
			price := quote.Price
			value := price * holding.Shares
			gain := value - holding.CostBasis
			v.CurrentPrice = &price
			v.MarketValue = &value
			v.UnrealizedGain = &gain
			totalValue += value
		}
		valued = append(valued, v)
	}

	h.writeJSON(w, map[string]interface{}{
		"holdings":    valued,
		"total_value": totalValue,
		"total_cost":  totalCost,
	})
}

// HandleCreate adds a holding
// POST /api/portfolio
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Ticker == "" {
		http.Error(w, "Ticker is required", http.StatusBadRequest)
		return
	}
	if req.Shares <= 0 {
		http.Error(w, "Shares must be positive", http.StatusBadRequest)
		return
	}

	holding, err := h.repo.Create(req.Ticker, req.Shares, req.CostBasis)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to create holding")
		http.Error(w, "Failed to create holding", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, holding)
}

// HandleUpdate changes shares and cost basis
// PUT /api/portfolio/{id}
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid holding id", http.StatusBadRequest)
		return
	}

	var req holdingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Shares <= 0 {
		http.Error(w, "Shares must be positive", http.StatusBadRequest)
		return
	}

	holding, err := h.repo.Update(id, req.Shares, req.CostBasis)
	if err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to update holding")
		http.Error(w, "Failed to update holding", http.StatusInternalServerError)
		return
	}
	if holding == nil {
		http.Error(w, "Holding not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, holding)
}

// HandleDelete removes a holding
// DELETE /api/portfolio/{id}
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid holding id", http.StatusBadRequest)
		return
	}

	removed, err := h.repo.Delete(id)
	if err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("Failed to delete holding")
		http.Error(w, "Failed to delete holding", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "Holding not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]string{"status": "removed"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
