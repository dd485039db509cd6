package history

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/clients/yahoo"
	"github.com/aristath/marginwatch/internal/domain"
)

// StockResolver looks up a watched stock by ticker
type StockResolver interface {
	GetByTicker(ticker string) (*domain.WatchedStock, error)
}

// BarFetcher fetches daily bars from the quote provider
type BarFetcher interface {
	GetHistoricalPrices(symbol string, period string) ([]yahoo.HistoricalPrice, error)
}

// Handlers contains HTTP handlers for price history
type Handlers struct {
	repo    *Repository
	daily   *DailyStore
	stocks  StockResolver
	fetcher BarFetcher
	log     zerolog.Logger
}

// NewHandlers creates a new history handlers instance
func NewHandlers(repo *Repository, daily *DailyStore, stocks StockResolver, fetcher BarFetcher, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo:    repo,
		daily:   daily,
		stocks:  stocks,
		fetcher: fetcher,
		log:     log.With().Str("handler", "history").Logger(),
	}
}

// HandleRecent returns recent intraday observations for a watched stock
// GET /api/history/{ticker}?limit=N
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	stock := h.resolveStock(w, r)
	if stock == nil {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := h.repo.Recent(stock.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("Failed to load price history")
		http.Error(w, "Failed to load price history", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"ticker":  stock.Ticker,
		"records": records,
	})
}

// HandleDailyBars returns stored daily bars for a watched stock
// GET /api/history/{ticker}/daily?limit=N
func (h *Handlers) HandleDailyBars(w http.ResponseWriter, r *http.Request) {
	stock := h.resolveStock(w, r)
	if stock == nil {
		return
	}

	limit := 252
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	bars, err := h.daily.Bars(stock.Ticker, limit)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("Failed to load daily bars")
		http.Error(w, "Failed to load daily bars", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"ticker": stock.Ticker,
		"bars":   bars,
	})
}

// HandleStats returns return and indicator statistics for a watched stock
// GET /api/history/{ticker}/stats
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stock := h.resolveStock(w, r)
	if stock == nil {
		return
	}

	bars, err := h.daily.Bars(stock.Ticker, 0)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("Failed to load daily bars")
		http.Error(w, "Failed to load daily bars", http.StatusInternalServerError)
		return
	}

	stats, err := ComputeStats(stock.Ticker, bars)
	if err != nil {
		http.Error(w, "Not enough history to compute stats", http.StatusUnprocessableEntity)
		return
	}

	h.writeJSON(w, stats)
}

// HandleSync fetches daily bars from the provider and stores them
// POST /api/history/{ticker}/sync?period=1y
func (h *Handlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	stock := h.resolveStock(w, r)
	if stock == nil {
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1y"
	}

	bars, err := h.fetcher.GetHistoricalPrices(stock.Ticker, period)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("Failed to fetch daily bars")
		http.Error(w, "Failed to fetch daily bars", http.StatusBadGateway)
		return
	}

	stored, err := h.daily.Upsert(stock.Ticker, bars)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("Failed to store daily bars")
		http.Error(w, "Failed to store daily bars", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"ticker": stock.Ticker,
		"period": period,
		"stored": stored,
	})
}

func (h *Handlers) resolveStock(w http.ResponseWriter, r *http.Request) *domain.WatchedStock {
	ticker := chi.URLParam(r, "ticker")

	stock, err := h.stocks.GetByTicker(ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to resolve stock")
		http.Error(w, "Failed to resolve stock", http.StatusInternalServerError)
		return nil
	}
	if stock == nil {
		http.Error(w, "Stock not watched", http.StatusNotFound)
		return nil
	}
	return stock
}

func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
