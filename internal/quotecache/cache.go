// Package quotecache keeps the last observed quote per ticker in memory and
// can snapshot the whole set to disk, so a restart starts from the last known
// prices instead of an empty dashboard.
package quotecache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/marginwatch/internal/domain"
)

// Cache holds the latest quote per ticker
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	log    zerolog.Logger
}

// snapshot is the on-disk representation of the cache
type snapshot struct {
	SavedAt time.Time               `msgpack:"saved_at"`
	Quotes  map[string]domain.Quote `msgpack:"quotes"`
}

// New creates an empty quote cache
func New(log zerolog.Logger) *Cache {
	return &Cache{
		quotes: make(map[string]domain.Quote),
		log:    log.With().Str("component", "quotecache").Logger(),
	}
}

// Set stores the latest quote for a ticker
func (c *Cache) Set(quote domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[quote.Ticker] = quote
}

// Get returns the latest quote for a ticker
func (c *Cache) Get(ticker string) (domain.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	quote, ok := c.quotes[ticker]
	return quote, ok
}

// All returns a copy of every cached quote
func (c *Cache) All() map[string]domain.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.Quote, len(c.quotes))
	for ticker, quote := range c.quotes {
		out[ticker] = quote
	}
	return out
}

// Delete removes a ticker from the cache
func (c *Cache) Delete(ticker string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.quotes, ticker)
}

// Len returns the number of cached quotes
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}

// Save writes a snapshot of the cache to path. The write goes through a
// temp file and rename so a crash mid-write never leaves a torn snapshot.
func (c *Cache) Save(path string) error {
	c.mu.RLock()
	snap := snapshot{
		SavedAt: time.Now().UTC(),
		Quotes:  make(map[string]domain.Quote, len(c.quotes)),
	}
	for ticker, quote := range c.quotes {
		snap.Quotes[ticker] = quote
	}
	c.mu.RUnlock()

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal quote snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write quote snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize quote snapshot: %w", err)
	}

	c.log.Debug().Int("quotes", len(snap.Quotes)).Str("path", path).Msg("Saved quote snapshot")
	return nil
}

// Load restores the cache from a snapshot file. A missing file is not an
// error; the cache simply starts empty.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read quote snapshot: %w", err)
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to parse quote snapshot: %w", err)
	}

	c.mu.Lock()
	for ticker, quote := range snap.Quotes {
		c.quotes[ticker] = quote
	}
	c.mu.Unlock()

	c.log.Info().
		Int("quotes", len(snap.Quotes)).
		Time("saved_at", snap.SavedAt).
		Msg("Restored quote snapshot")
	return nil
}
