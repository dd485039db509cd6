package alerts

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateStoreGetSet(t *testing.T) {
	store := NewStateStore()

	// Unknown ticker returns the zero time
	assert.True(t, store.Get("AAPL").IsZero())

	now := time.Now()
	store.Set("AAPL", now)
	assert.Equal(t, now, store.Get("AAPL"))
	assert.Equal(t, 1, store.Len())

	// Other tickers are unaffected
	assert.True(t, store.Get("MSFT").IsZero())
}

func TestStateStoreCompareAndSwap(t *testing.T) {
	store := NewStateStore()
	t1 := time.Now()
	t2 := t1.Add(time.Hour)

	// Swap from zero succeeds on a fresh ticker
	assert.True(t, store.CompareAndSwap("AAPL", time.Time{}, t1))
	assert.Equal(t, t1, store.Get("AAPL"))

	// Stale old value is rejected
	assert.False(t, store.CompareAndSwap("AAPL", time.Time{}, t2))
	assert.Equal(t, t1, store.Get("AAPL"))

	// Correct old value succeeds
	assert.True(t, store.CompareAndSwap("AAPL", t1, t2))
	assert.Equal(t, t2, store.Get("AAPL"))
}

func TestStateStoreConcurrentDistinctKeys(t *testing.T) {
	// Concurrent per-ticker tasks each touch their own key
	store := NewStateStore()
	tickers := []string{"AAPL", "MSFT", "GOOGL", "BRK-B", "JNJ", "V", "PG", "KO"}

	var wg sync.WaitGroup
	now := time.Now()
	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			store.Set(ticker, now)
		}(ticker)
	}
	wg.Wait()

	assert.Equal(t, len(tickers), store.Len())
	for _, ticker := range tickers {
		assert.Equal(t, now, store.Get(ticker))
	}
}
