package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
	"github.com/aristath/marginwatch/internal/events"
	"github.com/aristath/marginwatch/internal/modules/alerts"
	"github.com/aristath/marginwatch/internal/notify"
)

// ErrCycleRunning is returned by TriggerNow when a cycle is already in
// progress.
var ErrCycleRunning = fmt.Errorf("refresh cycle already running")

// StockLister loads the current watchlist
type StockLister interface {
	GetAll() ([]domain.WatchedStock, error)
}

// QuoteFetcher fetches a current quote for a ticker
type QuoteFetcher interface {
	FetchQuote(ticker string) (*domain.Quote, error)
}

// HistoryAppender records one price observation
type HistoryAppender interface {
	Append(stockID int64, price float64, changePercent *float64) (*domain.PriceHistoryRecord, error)
}

// AlertRecorder persists a fired alert for the dashboard feed
type AlertRecorder interface {
	Record(ticker string, price, intrinsicValue, marginOfSafety float64) (*domain.Alert, error)
}

// QuoteSink receives the latest quote per ticker
type QuoteSink interface {
	Set(quote domain.Quote)
}

// StreamBroadcaster pushes live updates to connected clients
type StreamBroadcaster interface {
	BroadcastQuote(quote domain.Quote)
	BroadcastCycle(refreshed, failed int, duration time.Duration)
}

// CycleResult summarizes one completed refresh cycle
type CycleResult struct {
	Total     int           `json:"total"`
	Refreshed int           `json:"refreshed"`
	Failed    int           `json:"failed"`
	Alerts    int           `json:"alerts"`
	Duration  time.Duration `json:"-"`
}

// RefreshCycleJob refreshes every watched stock: fetch a quote, append it to
// the price history, and evaluate the margin-of-safety alert. Tickers are
// processed concurrently and independently; one ticker failing never blocks
// the others. Overlapping runs are skipped, the in-flight cycle wins.
type RefreshCycleJob struct {
	stocks      StockLister
	quotes      QuoteFetcher
	history     HistoryAppender
	alertLog    AlertRecorder
	alertState  *alerts.StateStore
	notifier    *notify.Registry
	cache       QuoteSink
	stream      StreamBroadcaster
	events      *events.Manager
	alertWindow time.Duration
	now         func() time.Time
	log         zerolog.Logger

	running sync.Mutex

	mu         sync.Mutex
	lastResult *CycleResult
	lastRun    time.Time
}

// RefreshCycleConfig wires the refresh cycle's collaborators.
// Cache and Stream are optional.
type RefreshCycleConfig struct {
	Stocks      StockLister
	Quotes      QuoteFetcher
	History     HistoryAppender
	AlertLog    AlertRecorder
	AlertState  *alerts.StateStore
	Notifier    *notify.Registry
	Cache       QuoteSink
	Stream      StreamBroadcaster
	Events      *events.Manager
	AlertWindow time.Duration
}

// NewRefreshCycleJob creates the refresh cycle job
func NewRefreshCycleJob(cfg RefreshCycleConfig, log zerolog.Logger) *RefreshCycleJob {
	window := cfg.AlertWindow
	if window <= 0 {
		window = 24 * time.Hour
	}

	return &RefreshCycleJob{
		stocks:      cfg.Stocks,
		quotes:      cfg.Quotes,
		history:     cfg.History,
		alertLog:    cfg.AlertLog,
		alertState:  cfg.AlertState,
		notifier:    cfg.Notifier,
		cache:       cfg.Cache,
		stream:      cfg.Stream,
		events:      cfg.Events,
		alertWindow: window,
		now:         time.Now,
		log:         log.With().Str("job", "refresh_cycle").Logger(),
	}
}

// Name identifies the job in scheduler logs
func (j *RefreshCycleJob) Name() string {
	return "refresh_cycle"
}

// Run executes one refresh cycle. When the previous cycle is still in
// progress the tick is skipped without error.
func (j *RefreshCycleJob) Run() error {
	if !j.running.TryLock() {
		j.log.Warn().Msg("Previous refresh cycle still running, skipping tick")
		return nil
	}
	defer j.running.Unlock()

	_, err := j.runCycle()
	return err
}

// TriggerNow runs a cycle immediately and returns its result. Unlike the
// scheduled tick it reports an overlap instead of silently skipping.
func (j *RefreshCycleJob) TriggerNow() (*CycleResult, error) {
	if !j.running.TryLock() {
		return nil, ErrCycleRunning
	}
	defer j.running.Unlock()

	return j.runCycle()
}

// LastResult returns the result and completion time of the most recent cycle
func (j *RefreshCycleJob) LastResult() (*CycleResult, time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastResult, j.lastRun
}

func (j *RefreshCycleJob) runCycle() (*CycleResult, error) {
	start := j.now()

	stocks, err := j.stocks.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load watchlist: %w", err)
	}

	if j.events != nil {
		j.events.Emit(events.RefreshCycleStart, "scheduler", map[string]interface{}{
			"stocks": len(stocks),
		})
	}

	result := &CycleResult{Total: len(stocks)}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, stock := range stocks {
		wg.Add(1)
		go func(stock domain.WatchedStock) {
			defer wg.Done()

			alerted, err := j.refreshStock(stock)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				return
			}
			result.Refreshed++
			if alerted {
				result.Alerts++
			}
		}(stock)
	}
	wg.Wait()

	result.Duration = j.now().Sub(start)

	j.mu.Lock()
	j.lastResult = result
	j.lastRun = j.now()
	j.mu.Unlock()

	if j.stream != nil {
		j.stream.BroadcastCycle(result.Refreshed, result.Failed, result.Duration)
	}
	if j.events != nil {
		j.events.Emit(events.RefreshCycleComplete, "scheduler", map[string]interface{}{
			"refreshed":   result.Refreshed,
			"failed":      result.Failed,
			"alerts":      result.Alerts,
			"duration_ms": result.Duration.Milliseconds(),
		})
	}

	j.log.Info().
		Int("refreshed", result.Refreshed).
		Int("failed", result.Failed).
		Int("alerts", result.Alerts).
		Dur("duration", result.Duration).
		Msg("Refresh cycle complete")

	return result, nil
}

// refreshStock handles one ticker: fetch, record, evaluate. Returns whether
// an alert fired.
func (j *RefreshCycleJob) refreshStock(stock domain.WatchedStock) (bool, error) {
	quote, err := j.quotes.FetchQuote(stock.Ticker)
	if err != nil {
		j.log.Warn().Err(err).Str("ticker", stock.Ticker).Msg("Quote fetch failed")
		if j.events != nil {
			j.events.EmitError("scheduler", err, map[string]interface{}{
				"ticker": stock.Ticker,
			})
		}
		return false, err
	}

	var changePercent *float64
	if quote.ChangePercent != 0 {
		cp := quote.ChangePercent
		changePercent = &cp
	}

	if _, err := j.history.Append(stock.ID, quote.Price, changePercent); err != nil {
		j.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("Failed to record price")
		return false, err
	}

	if j.cache != nil {
		j.cache.Set(*quote)
	}
	if j.stream != nil {
		j.stream.BroadcastQuote(*quote)
	}
	if j.events != nil {
		j.events.Emit(events.QuoteFetched, "scheduler", map[string]interface{}{
			"ticker": quote.Ticker,
			"price":  quote.Price,
		})
	}

	return j.evaluateAlert(stock, quote.Price), nil
}

// evaluateAlert fires at most one alert per ticker per window. The state
// update uses compare-and-swap so two overlapping evaluations of the same
// ticker cannot both claim the window.
func (j *RefreshCycleJob) evaluateAlert(stock domain.WatchedStock, price float64) bool {
	now := j.now()
	lastAlert := j.alertState.Get(stock.Ticker)

	if !alerts.ShouldAlert(stock.IntrinsicValue, price, lastAlert, now, j.alertWindow) {
		return false
	}
	if !j.alertState.CompareAndSwap(stock.Ticker, lastAlert, now) {
		return false
	}

	mos := alerts.MarginOfSafety(stock.IntrinsicValue, price)

	if j.alertLog != nil {
		if _, err := j.alertLog.Record(stock.Ticker, price, stock.IntrinsicValue, mos); err != nil {
			j.log.Error().Err(err).Str("ticker", stock.Ticker).Msg("Failed to record alert")
		}
	}

	delivered := 0
	if j.notifier != nil {
		delivered = j.notifier.Broadcast(notify.FormatAlert(stock.Ticker, price, stock.IntrinsicValue, mos))
	}

	if j.events != nil {
		j.events.Emit(events.AlertFired, "scheduler", map[string]interface{}{
			"ticker":           stock.Ticker,
			"price":            price,
			"intrinsic_value":  stock.IntrinsicValue,
			"margin_of_safety": mos,
			"delivered":        delivered,
		})
	}

	j.log.Info().
		Str("ticker", stock.Ticker).
		Float64("price", price).
		Float64("intrinsic_value", stock.IntrinsicValue).
		Float64("margin_of_safety", mos).
		Int("delivered", delivered).
		Msg("Alert fired")

	return true
}
