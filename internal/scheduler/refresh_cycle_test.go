package scheduler

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marginwatch/internal/domain"
	"github.com/aristath/marginwatch/internal/events"
	"github.com/aristath/marginwatch/internal/modules/alerts"
	"github.com/aristath/marginwatch/internal/notify"
)

type fakeStocks struct {
	stocks []domain.WatchedStock
	err    error
}

func (f *fakeStocks) GetAll() ([]domain.WatchedStock, error) {
	return f.stocks, f.err
}

type fakeQuotes struct {
	mu      sync.Mutex
	prices  map[string]float64
	failing map[string]bool
	calls   map[string]int
	block   chan struct{}
}

func (f *fakeQuotes) FetchQuote(ticker string) (*domain.Quote, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ticker]++

	if f.failing[ticker] {
		return nil, fmt.Errorf("provider unavailable for %s", ticker)
	}
	return &domain.Quote{
		Ticker:     ticker,
		Price:      f.prices[ticker],
		ObservedAt: time.Now().UTC(),
	}, nil
}

type fakeHistory struct {
	mu      sync.Mutex
	appends []int64
	err     error
}

func (f *fakeHistory) Append(stockID int64, price float64, changePercent *float64) (*domain.PriceHistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.appends = append(f.appends, stockID)
	return &domain.PriceHistoryRecord{StockID: stockID, Price: price}, nil
}

func (f *fakeHistory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appends)
}

type fakeAlertLog struct {
	mu      sync.Mutex
	tickers []string
}

func (f *fakeAlertLog) Record(ticker string, price, intrinsicValue, marginOfSafety float64) (*domain.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickers = append(f.tickers, ticker)
	return &domain.Alert{Ticker: ticker}, nil
}

type countingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (c *countingNotifier) Send(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	return nil
}

func (c *countingNotifier) Name() string { return "counting" }

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func watched(id int64, ticker string, intrinsic float64) domain.WatchedStock {
	return domain.WatchedStock{ID: id, Ticker: ticker, IntrinsicValue: intrinsic}
}

func newTestJob(stocks StockLister, quotes QuoteFetcher, history HistoryAppender, sink *countingNotifier) (*RefreshCycleJob, *fakeAlertLog) {
	registry := notify.NewRegistry(events.NewManager(zerolog.Nop()), zerolog.Nop())
	if sink != nil {
		registry.Register(sink)
	}

	alertLog := &fakeAlertLog{}
	job := NewRefreshCycleJob(RefreshCycleConfig{
		Stocks:      stocks,
		Quotes:      quotes,
		History:     history,
		AlertLog:    alertLog,
		AlertState:  alerts.NewStateStore(),
		Notifier:    registry,
		Events:      events.NewManager(zerolog.Nop()),
		AlertWindow: 24 * time.Hour,
	}, zerolog.Nop())

	return job, alertLog
}

func TestCycleRefreshesAllStocks(t *testing.T) {
	stocks := &fakeStocks{stocks: []domain.WatchedStock{
		watched(1, "AAPL", 0),
		watched(2, "MSFT", 0),
		watched(3, "GOOGL", 0),
	}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 100, "MSFT": 300, "GOOGL": 150}}
	history := &fakeHistory{}

	job, _ := newTestJob(stocks, quotes, history, nil)

	result, err := job.TriggerNow()
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Refreshed)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 3, history.count())
}

func TestCycleIsolatesFailingTicker(t *testing.T) {
	stocks := &fakeStocks{stocks: []domain.WatchedStock{
		watched(1, "AAPL", 0),
		watched(2, "FAIL", 0),
		watched(3, "GOOGL", 0),
	}}
	quotes := &fakeQuotes{
		prices:  map[string]float64{"AAPL": 100, "GOOGL": 150},
		failing: map[string]bool{"FAIL": true},
	}
	history := &fakeHistory{}

	job, _ := newTestJob(stocks, quotes, history, nil)

	result, err := job.TriggerNow()
	require.NoError(t, err)
	assert.Equal(t, 2, result.Refreshed)
	assert.Equal(t, 1, result.Failed)

	// The failing ticker never reaches the history store
	assert.Equal(t, 2, history.count())
	assert.NotContains(t, history.appends, int64(2))
}

func TestCycleFiresAlertBelowIntrinsic(t *testing.T) {
	stocks := &fakeStocks{stocks: []domain.WatchedStock{
		watched(1, "AAPL", 100), // price 80, 20% margin
		watched(2, "MSFT", 100), // price 120, above intrinsic
		watched(3, "NOPE", 0),   // no estimate, alerts disabled
	}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 80, "MSFT": 120, "NOPE": 1}}
	sink := &countingNotifier{}

	job, alertLog := newTestJob(stocks, quotes, &fakeHistory{}, sink)

	result, err := job.TriggerNow()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Alerts)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, []string{"AAPL"}, alertLog.tickers)
	assert.Contains(t, sink.messages[0], "AAPL")
	assert.Contains(t, sink.messages[0], "20.0%")
}

func TestCycleSuppressesRepeatAlertWithinWindow(t *testing.T) {
	stocks := &fakeStocks{stocks: []domain.WatchedStock{watched(1, "AAPL", 100)}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 80}}
	sink := &countingNotifier{}

	job, _ := newTestJob(stocks, quotes, &fakeHistory{}, sink)

	// First cycle alerts, the next two within the window stay quiet
	for i := 0; i < 3; i++ {
		_, err := job.TriggerNow()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, sink.count())

	// Past the window the alert fires again
	base := time.Now()
	job.now = func() time.Time { return base.Add(25 * time.Hour) }
	result, err := job.TriggerNow()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Alerts)
	assert.Equal(t, 2, sink.count())
}

func TestCycleFailedFetchStillAlertsNextTime(t *testing.T) {
	stocks := &fakeStocks{stocks: []domain.WatchedStock{watched(1, "AAPL", 100)}}
	quotes := &fakeQuotes{
		prices:  map[string]float64{"AAPL": 80},
		failing: map[string]bool{"AAPL": true},
	}
	sink := &countingNotifier{}

	job, _ := newTestJob(stocks, quotes, &fakeHistory{}, sink)

	// Fetch fails, no alert and no state change
	result, err := job.TriggerNow()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, sink.count())

	// Provider recovers, the alert fires
	quotes.failing["AAPL"] = false
	result, err = job.TriggerNow()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Alerts)
	assert.Equal(t, 1, sink.count())
}

func TestOverlappingCycleIsSkipped(t *testing.T) {
	block := make(chan struct{})
	stocks := &fakeStocks{stocks: []domain.WatchedStock{watched(1, "AAPL", 0)}}
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 100}, block: block}

	job, _ := newTestJob(stocks, quotes, &fakeHistory{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- job.Run()
	}()

	// Wait for the first cycle to be inside the fetch
	require.Eventually(t, func() bool {
		if job.running.TryLock() {
			job.running.Unlock()
			return false
		}
		return true
	}, time.Second, 5*time.Millisecond)

	// Scheduled tick skips silently, manual trigger reports the overlap
	assert.NoError(t, job.Run())
	_, err := job.TriggerNow()
	assert.ErrorIs(t, err, ErrCycleRunning)

	close(block)
	require.NoError(t, <-done)

	result, lastRun := job.LastResult()
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Refreshed)
	assert.False(t, lastRun.IsZero())
}

func TestCycleWatchlistLoadFailure(t *testing.T) {
	job, _ := newTestJob(&fakeStocks{err: fmt.Errorf("db closed")}, &fakeQuotes{}, &fakeHistory{}, nil)

	_, err := job.TriggerNow()
	assert.Error(t, err)
}

func TestEmptyWatchlistCycle(t *testing.T) {
	job, _ := newTestJob(&fakeStocks{}, &fakeQuotes{}, &fakeHistory{}, nil)

	result, err := job.TriggerNow()
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.Zero(t, result.Refreshed)
}
