package watchlist

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
	"github.com/aristath/marginwatch/internal/events"
)

// QuoteSource fetches a current quote for a ticker
type QuoteSource interface {
	FetchQuote(ticker string) (*domain.Quote, error)
}

// Service wraps the repository with events and composes the quote source
// fallback chain (Yahoo first, Alpha Vantage when Yahoo fails).
type Service struct {
	repo    *Repository
	sources []QuoteSource
	events  *events.Manager
	log     zerolog.Logger
}

// NewService creates a new watchlist service
func NewService(repo *Repository, sources []QuoteSource, eventMgr *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		sources: sources,
		events:  eventMgr,
		log:     log.With().Str("service", "watchlist").Logger(),
	}
}

// Add adds a ticker to the watchlist and emits a StockAdded event
func (s *Service) Add(ticker string, intrinsicValue float64, convictionScore int) (*domain.WatchedStock, error) {
	stock, err := s.repo.Create(ticker, intrinsicValue, convictionScore)
	if err != nil {
		return nil, err
	}

	s.events.Emit(events.StockAdded, "watchlist", map[string]interface{}{
		"ticker":          stock.Ticker,
		"intrinsic_value": stock.IntrinsicValue,
	})

	return stock, nil
}

// Remove deletes a ticker from the watchlist
func (s *Service) Remove(ticker string) (bool, error) {
	removed, err := s.repo.Delete(ticker)
	if err != nil {
		return false, err
	}

	if removed {
		s.events.Emit(events.StockRemoved, "watchlist", map[string]interface{}{
			"ticker": NormalizeTicker(ticker),
		})
	}

	return removed, nil
}

// Update changes intrinsic value and conviction for a ticker
func (s *Service) Update(ticker string, intrinsicValue float64, convictionScore int) (*domain.WatchedStock, error) {
	return s.repo.Update(ticker, intrinsicValue, convictionScore)
}

// Get returns one watched stock, nil if not watched
func (s *Service) Get(ticker string) (*domain.WatchedStock, error) {
	return s.repo.GetByTicker(ticker)
}

// All returns every watched stock
func (s *Service) All() ([]domain.WatchedStock, error) {
	return s.repo.GetAll()
}

// FetchQuote tries each quote source in order and returns the first success.
// Source failures below the last are logged at debug level only; the refresh
// cycle handles the terminal error.
func (s *Service) FetchQuote(ticker string) (*domain.Quote, error) {
	ticker = NormalizeTicker(ticker)

	var lastErr error
	for i, source := range s.sources {
		quote, err := source.FetchQuote(ticker)
		if err == nil {
			return quote, nil
		}

		lastErr = err
		if i < len(s.sources)-1 {
			s.log.Debug().Err(err).Str("ticker", ticker).Msg("Quote source failed, trying fallback")
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no quote sources configured")
	}
	return nil, lastErr
}
