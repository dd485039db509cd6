// Package filings serves recent SEC filings for watched tickers, backed by a
// database cache so EDGAR is only hit when the cached entry has expired.
package filings

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
)

const (
	defaultTTL   = 6 * time.Hour
	defaultLimit = 20
)

// FilingSource fetches recent filings from the upstream API
type FilingSource interface {
	GetRecentFilings(ticker string, limit int) ([]domain.Filing, error)
}

// Service caches EDGAR filing lists per ticker
type Service struct {
	db     *sql.DB
	source FilingSource
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewService creates a new filings service with the default cache TTL
func NewService(db *sql.DB, source FilingSource, log zerolog.Logger) *Service {
	return &Service{
		db:     db,
		source: source,
		ttl:    defaultTTL,
		now:    time.Now,
		log:    log.With().Str("service", "filings").Logger(),
	}
}

// RecentFilings returns filings for a ticker, from cache when fresh.
// The cached flag reports whether the result came from the cache.
func (s *Service) RecentFilings(ticker string) ([]domain.Filing, bool, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, false, fmt.Errorf("ticker must not be empty")
	}

	if filings, ok := s.fromCache(ticker); ok {
		return filings, true, nil
	}

	filings, err := s.source.GetRecentFilings(ticker, defaultLimit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch filings for %s: %w", ticker, err)
	}

	if err := s.store(ticker, filings); err != nil {
		// Serving the fresh result matters more than the cache write
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache filings")
	}

	return filings, false, nil
}

// Invalidate drops the cached entry for a ticker
func (s *Service) Invalidate(ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	_, err := s.db.Exec("DELETE FROM filings_cache WHERE ticker = ?", ticker)
	if err != nil {
		return fmt.Errorf("failed to invalidate filings cache: %w", err)
	}
	return nil
}

func (s *Service) fromCache(ticker string) ([]domain.Filing, bool) {
	var data string
	var expiresAt int64

	err := s.db.QueryRow(
		"SELECT data, expires_at FROM filings_cache WHERE ticker = ?", ticker,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read filings cache")
		return nil, false
	}

	if s.now().Unix() >= expiresAt {
		return nil, false
	}

	var filings []domain.Filing
	if err := json.Unmarshal([]byte(data), &filings); err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Corrupt filings cache entry")
		return nil, false
	}

	return filings, true
}

func (s *Service) store(ticker string, filings []domain.Filing) error {
	data, err := json.Marshal(filings)
	if err != nil {
		return fmt.Errorf("failed to marshal filings: %w", err)
	}

	expiresAt := s.now().Add(s.ttl).Unix()
	_, err = s.db.Exec(`
		INSERT INTO filings_cache (ticker, data, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`, ticker, string(data), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to write filings cache: %w", err)
	}
	return nil
}
