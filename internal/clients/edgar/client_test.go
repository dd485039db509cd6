package edgar

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRecentFilings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(`{
			"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
			"1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"}
		}`))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"filings": {
				"recent": {
					"accessionNumber": ["0000320193-24-000123", "0000320193-24-000100", "0000320193-24-000050"],
					"form": ["10-K", "8-K", "10-Q"],
					"filingDate": ["2024-11-01", "2024-08-02", "2024-05-03"],
					"reportDate": ["2024-09-28", "", "2024-03-30"],
					"primaryDocument": ["aapl-10k.htm", "aapl-8k.htm", "aapl-10q.htm"],
					"primaryDocDescription": ["10-K", "8-K", "10-Q"]
				}
			}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient("test test@example.com", zerolog.Nop())
	client.tickersURL = srv.URL + "/files/company_tickers.json"
	client.submissionsURL = srv.URL + "/submissions"

	filings, err := client.GetRecentFilings("aapl", 2)
	require.NoError(t, err)
	require.Len(t, filings, 2)
	assert.Equal(t, "10-K", filings[0].Form)
	assert.Equal(t, "2024-11-01", filings[0].FilingDate)
	assert.Equal(t, "8-K", filings[1].Form)
	assert.Empty(t, filings[1].ReportDate)
}

func TestLookupCIKCachesMapping(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`))
	}))
	defer srv.Close()

	client := NewClient("test test@example.com", zerolog.Nop())
	client.tickersURL = srv.URL

	cik, err := client.lookupCIK("AAPL")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)

	// Second lookup must not re-fetch the mapping
	_, err = client.lookupCIK("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLookupCIKUnknownTicker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`))
	}))
	defer srv.Close()

	client := NewClient("test test@example.com", zerolog.Nop())
	client.tickersURL = srv.URL

	_, err := client.lookupCIK("ZZZZ")
	assert.Error(t, err)
}
