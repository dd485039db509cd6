package database

import "fmt"

// schema holds the DDL for all marginwatch tables.
// price_history cascades on stock deletion; the history rows have no
// independent life once the watched stock is gone.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS watched_stocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL UNIQUE,
		intrinsic_value REAL NOT NULL DEFAULT 0,
		conviction_score INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stock_id INTEGER NOT NULL REFERENCES watched_stocks(id) ON DELETE CASCADE,
		price REAL NOT NULL,
		change_percent REAL,
		timestamp TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_stock_ts
		ON price_history(stock_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL,
		shares REAL NOT NULL,
		cost_basis REAL NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		uuid TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_ticker ON notes(ticker)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		uuid TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		price REAL NOT NULL,
		intrinsic_value REAL NOT NULL,
		margin_of_safety REAL NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS filings_cache (
		ticker TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	)`,
}

// Migrate creates all tables if they do not exist
func (db *DB) Migrate() error {
	for _, stmt := range schema {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
