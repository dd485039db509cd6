// Package domain holds the core data types shared across modules.
package domain

import "time"

// WatchedStock is a ticker the user tracks, with an intrinsic value estimate.
// An intrinsic value of zero means no estimate is set and alerts are disabled
// for that stock.
type WatchedStock struct {
	ID              int64     `json:"id"`
	Ticker          string    `json:"ticker"`
	IntrinsicValue  float64   `json:"intrinsic_value"`
	ConvictionScore int       `json:"conviction_score"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Quote is a point-in-time price observation for a ticker.
// It is ephemeral - produced by a quote source, never persisted as-is.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
	ObservedAt    time.Time `json:"observed_at"`
}

// PriceHistoryRecord is one appended price observation for a watched stock.
// Records are append-only; change percent is nullable because some providers
// omit it.
type PriceHistoryRecord struct {
	ID            int64     `json:"id"`
	StockID       int64     `json:"stock_id"`
	Price         float64   `json:"price"`
	ChangePercent *float64  `json:"change_percent,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Alert is a fired margin-of-safety alert, kept for the dashboard feed.
type Alert struct {
	UUID           string    `json:"uuid"`
	Ticker         string    `json:"ticker"`
	Price          float64   `json:"price"`
	IntrinsicValue float64   `json:"intrinsic_value"`
	MarginOfSafety float64   `json:"margin_of_safety"`
	CreatedAt      time.Time `json:"created_at"`
}

// Holding is a portfolio position entered by the user.
type Holding struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"ticker"`
	Shares    float64   `json:"shares"`
	CostBasis float64   `json:"cost_basis"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is a free-form research note attached to a ticker.
type Note struct {
	UUID      string    `json:"uuid"`
	Ticker    string    `json:"ticker"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Filing is one SEC filing entry from the EDGAR submissions feed.
type Filing struct {
	AccessionNumber string `json:"accession_number"`
	Form            string `json:"form"`
	FilingDate      string `json:"filing_date"`
	ReportDate      string `json:"report_date,omitempty"`
	PrimaryDocument string `json:"primary_document"`
	Description     string `json:"description,omitempty"`
}
