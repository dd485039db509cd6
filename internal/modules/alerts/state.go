package alerts

import (
	"sync"
	"time"
)

// StateStore tracks the last alert time per ticker. It is deliberately
// in-memory and process-lifetime only: a restart may repeat an alert within
// the dedup window, an accepted tradeoff of simplicity over durability.
//
// Each ticker is processed at most once per refresh cycle, so concurrent
// per-ticker tasks never contend on the same key.
type StateStore struct {
	mu        sync.RWMutex
	lastAlert map[string]time.Time
}

// NewStateStore creates an empty alert state store
func NewStateStore() *StateStore {
	return &StateStore{
		lastAlert: make(map[string]time.Time),
	}
}

// Get returns the last alert time for a ticker, zero time if none
func (s *StateStore) Get(ticker string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAlert[ticker]
}

// Set records the last alert time for a ticker
func (s *StateStore) Set(ticker string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAlert[ticker] = t
}

// CompareAndSwap sets the last alert time only if the stored value still
// equals old. Returns true when the swap happened.
func (s *StateStore) CompareAndSwap(ticker string, old, new time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastAlert[ticker].Equal(old) {
		return false
	}
	s.lastAlert[ticker] = new
	return true
}

// Len returns the number of tickers with recorded alerts
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lastAlert)
}
