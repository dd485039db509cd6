// Package alphavantage implements an Alpha Vantage client used as the
// fallback quote source. The free tier allows 25 requests per day, so the
// client tracks a daily budget and caches responses aggressively.
package alphavantage

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
)

const dailyRequestLimit = 25

// ErrRateLimitExceeded is returned when the daily request budget is spent.
type ErrRateLimitExceeded struct {
	Used int
}

func (e ErrRateLimitExceeded) Error() string {
	return fmt.Sprintf("alpha vantage daily rate limit exceeded (%d/%d requests used)", e.Used, dailyRequestLimit)
}

// cacheEntry holds a cached response with its expiration time
type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

// Client is an Alpha Vantage API client
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	mu           sync.Mutex
	requestsUsed int
	cache        map[string]cacheEntry
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: "https://www.alphavantage.co/query",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:   log.With().Str("client", "alphavantage").Logger(),
		cache: make(map[string]cacheEntry),
	}
}

// globalQuoteResponse represents the GLOBAL_QUOTE payload
type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
}

// FetchQuote fetches the current price for a ticker via GLOBAL_QUOTE.
// Quotes are cached for five minutes so a refresh cycle never spends more
// than one budget slot per ticker.
func (c *Client) FetchQuote(ticker string) (*domain.Quote, error) {
	params := map[string]string{"symbol": ticker}
	cacheKey := buildCacheKey("GLOBAL_QUOTE", params)

	if cached, ok := c.getFromCache(cacheKey); ok {
		if quote, ok := cached.(*domain.Quote); ok {
			return quote, nil
		}
	}

	if err := c.checkRateLimit(); err != nil {
		return nil, err
	}

	body, err := c.get("GLOBAL_QUOTE", params)
	if err != nil {
		return nil, err
	}

	var result globalQuoteResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	price := parseFloat64(result.GlobalQuote["05. price"])
	if price <= 0 {
		return nil, fmt.Errorf("no valid price returned for %s", ticker)
	}

	quote := &domain.Quote{
		Ticker:        ticker,
		Price:         price,
		ChangePercent: parseFloat64(result.GlobalQuote["10. change percent"]),
		ObservedAt:    time.Now().UTC(),
	}

	c.setCache(cacheKey, quote, 5*time.Minute)
	return quote, nil
}

// get performs a GET request against the Alpha Vantage query endpoint
func (c *Client) get(function string, params map[string]string) ([]byte, error) {
	values := url.Values{}
	values.Add("function", function)
	values.Add("apikey", c.apiKey)
	for k, v := range params {
		values.Add(k, v)
	}

	req, err := http.NewRequest("GET", c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from alpha vantage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("alpha vantage returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// checkRateLimit consumes one slot of the daily budget
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.requestsUsed >= dailyRequestLimit {
		return ErrRateLimitExceeded{Used: c.requestsUsed}
	}

	c.requestsUsed++
	return nil
}

// GetRemainingRequests returns how many requests are left in today's budget
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dailyRequestLimit - c.requestsUsed
}

// ResetDailyCounter resets the request budget, called by a daily cron job
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestsUsed = 0
	c.log.Debug().Msg("Daily request counter reset")
}

// setCache stores a value with a TTL
func (c *Client) setCache(key string, data interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cacheEntry{data: data, expiresAt: time.Now().Add(ttl)}
}

// getFromCache returns a cached value if present and not expired
func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// ClearCache drops all cached entries
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cacheEntry)
}

// buildCacheKey builds a deterministic cache key from a function name and
// its parameters. The API key is never part of the cache key.
func buildCacheKey(function string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "apikey" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(function)
	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(params[k])
	}
	return sb.String()
}

// parseFloat64 parses Alpha Vantage's stringly-typed numbers.
// Handles "None", "null", "-", empty strings and trailing percent signs.
func parseFloat64(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" || s == "None" || s == "null" || s == "-" {
		return 0
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
