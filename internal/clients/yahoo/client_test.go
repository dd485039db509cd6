package yahoo

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"quoteResponse": {
				"result": [{"symbol": "AAPL", "regularMarketPrice": 187.44, "regularMarketChangePercent": -1.23}],
				"error": null
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(zerolog.Nop())
	client.quoteURL = srv.URL

	quote, err := client.FetchQuote("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Ticker)
	assert.Equal(t, 187.44, quote.Price)
	assert.Equal(t, -1.23, quote.ChangePercent)
	assert.False(t, quote.ObservedAt.IsZero())
}

func TestFetchQuoteFallsBackToCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": [{"symbol": "BASF.DE", "currentPrice": 44.10}], "error": null}}`))
	}))
	defer srv.Close()

	client := NewClient(zerolog.Nop())
	client.quoteURL = srv.URL

	quote, err := client.FetchQuote("BASF.DE")
	require.NoError(t, err)
	assert.Equal(t, 44.10, quote.Price)
	assert.Equal(t, 0.0, quote.ChangePercent)
}

func TestFetchQuoteFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		ticker  string
	}{
		{
			name:   "non-2xx response",
			status: http.StatusTooManyRequests,
			body:   "rate limited",
			ticker: "AAPL",
		},
		{
			name:   "malformed payload",
			status: http.StatusOK,
			body:   "{not json",
			ticker: "AAPL",
		},
		{
			name:   "empty result set",
			status: http.StatusOK,
			body:   `{"quoteResponse": {"result": [], "error": null}}`,
			ticker: "NOPE",
		},
		{
			name:   "provider error",
			status: http.StatusOK,
			body:   `{"quoteResponse": {"result": [], "error": "Invalid symbol"}}`,
			ticker: "???",
		},
		{
			name:   "missing price field",
			status: http.StatusOK,
			body:   `{"quoteResponse": {"result": [{"symbol": "AAPL"}], "error": null}}`,
			ticker: "AAPL",
		},
		{
			name:   "non-positive price",
			status: http.StatusOK,
			body:   `{"quoteResponse": {"result": [{"symbol": "AAPL", "regularMarketPrice": 0}], "error": null}}`,
			ticker: "AAPL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(zerolog.Nop())
			client.quoteURL = srv.URL

			quote, err := client.FetchQuote(tt.ticker)
			assert.Nil(t, quote)
			require.Error(t, err)

			var unavailable QuoteUnavailableError
			assert.ErrorAs(t, err, &unavailable)
			assert.Equal(t, tt.ticker, unavailable.Ticker)
		})
	}
}

func TestFetchQuoteEmptyTicker(t *testing.T) {
	client := NewClient(zerolog.Nop())

	_, err := client.FetchQuote("")

	var unavailable QuoteUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestGetHistoricalPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "3mo", r.URL.Query().Get("range"))
		w.Write([]byte(`{
			"chart": {
				"result": [{
					"timestamp": [1700000000, 1700086400, 1700172800],
					"indicators": {
						"quote": [{
							"open":   [100, 101, 0],
							"high":   [102, 103, 0],
							"low":    [99, 100, 0],
							"close":  [101, 102, 0],
							"volume": [1000, 1100, 0]
						}],
						"adjclose": [{"adjclose": [100.5, 101.5, 0]}]
					}
				}],
				"error": null
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(zerolog.Nop())
	client.chartURL = srv.URL

	prices, err := client.GetHistoricalPrices("AAPL", "3mo")
	require.NoError(t, err)

	// The third bar is all zeros and must be skipped
	require.Len(t, prices, 2)
	assert.Equal(t, 101.0, prices[0].Close)
	assert.Equal(t, 100.5, prices[0].AdjClose)
	assert.Equal(t, int64(1100), prices[1].Volume)
}
