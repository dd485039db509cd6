// Package edgar implements a client for the SEC EDGAR submissions API,
// used to list recent filings for a ticker.
package edgar

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
)

// Client is a SEC EDGAR API client
type Client struct {
	client         *http.Client
	userAgent      string // SEC requires an identifying User-Agent
	tickersURL     string
	submissionsURL string
	log            zerolog.Logger

	mu       sync.Mutex
	cikCache map[string]string // ticker -> zero-padded CIK
}

// NewClient creates a new EDGAR client
func NewClient(userAgent string, log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent:      userAgent,
		tickersURL:     "https://www.sec.gov/files/company_tickers.json",
		submissionsURL: "https://data.sec.gov/submissions",
		log:            log.With().Str("client", "edgar").Logger(),
		cikCache:       make(map[string]string),
	}
}

// companyTickerEntry is one row of the SEC company_tickers.json mapping
type companyTickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// submissionsResponse is the columnar recent-filings block of the
// submissions API response
type submissionsResponse struct {
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			ReportDate      []string `json:"reportDate"`
			PrimaryDocument []string `json:"primaryDocument"`
			PrimaryDocDesc  []string `json:"primaryDocDescription"`
		} `json:"recent"`
	} `json:"filings"`
}

// GetRecentFilings returns the most recent filings for a ticker, newest first
func (c *Client) GetRecentFilings(ticker string, limit int) ([]domain.Filing, error) {
	cik, err := c.lookupCIK(ticker)
	if err != nil {
		return nil, err
	}

	body, err := c.get(fmt.Sprintf("%s/CIK%s.json", c.submissionsURL, cik))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions for %s: %w", ticker, err)
	}

	var result submissionsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse submissions response: %w", err)
	}

	recent := result.Filings.Recent
	filings := make([]domain.Filing, 0, limit)
	for i := range recent.AccessionNumber {
		if limit > 0 && len(filings) >= limit {
			break
		}

		filing := domain.Filing{
			AccessionNumber: recent.AccessionNumber[i],
			Form:            valueAt(recent.Form, i),
			FilingDate:      valueAt(recent.FilingDate, i),
			ReportDate:      valueAt(recent.ReportDate, i),
			PrimaryDocument: valueAt(recent.PrimaryDocument, i),
			Description:     valueAt(recent.PrimaryDocDesc, i),
		}
		filings = append(filings, filing)
	}

	c.log.Debug().
		Str("ticker", ticker).
		Str("cik", cik).
		Int("count", len(filings)).
		Msg("Fetched recent filings")

	return filings, nil
}

// lookupCIK resolves a ticker to its zero-padded 10-digit CIK.
// The full ticker mapping is fetched once and cached for the process lifetime.
func (c *Client) lookupCIK(ticker string) (string, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	c.mu.Lock()
	cached, ok := c.cikCache[ticker]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	body, err := c.get(c.tickersURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch ticker mapping: %w", err)
	}

	var entries map[string]companyTickerEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", fmt.Errorf("failed to parse ticker mapping: %w", err)
	}

	c.mu.Lock()
	for _, entry := range entries {
		c.cikCache[strings.ToUpper(entry.Ticker)] = fmt.Sprintf("%010d", entry.CIK)
	}
	cik, ok := c.cikCache[ticker]
	c.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("no CIK found for ticker %s", ticker)
	}

	return cik, nil
}

// get performs a GET request with the mandated User-Agent header
func (c *Client) get(url string) ([]byte, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("EDGAR returned status %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// valueAt safely indexes a column that may be shorter than the accession list
func valueAt(col []string, i int) string {
	if i < len(col) {
		return col[i]
	}
	return ""
}
