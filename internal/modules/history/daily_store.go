package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/clients/yahoo"
)

// DailyBar is one stored daily OHLCV bar
type DailyBar struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	AdjClose float64 `json:"adj_close"`
}

// DailyStore keeps daily bars in one database file per symbol under a
// directory. Files are opened lazily and kept open for the process lifetime.
// Upserts are keyed on date, so re-syncing a period is safe.
type DailyStore struct {
	dir string
	log zerolog.Logger

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

// NewDailyStore creates a daily bar store rooted at dir
func NewDailyStore(dir string, log zerolog.Logger) (*DailyStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create daily store directory: %w", err)
	}

	return &DailyStore{
		dir: dir,
		log: log.With().Str("component", "daily_store").Logger(),
		dbs: make(map[string]*sql.DB),
	}, nil
}

// Close closes all open per-symbol databases
func (s *DailyStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for symbol, db := range s.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close database for %s: %w", symbol, err)
		}
		delete(s.dbs, symbol)
	}
	return firstErr
}

// db returns the open database for a symbol, creating the file and schema
// on first use.
func (s *DailyStore) db(symbol string) (*sql.DB, error) {
	symbol = sanitizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.dbs[symbol]; ok {
		return db, nil
	}

	path := filepath.Join(s.dir, symbol+".db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open daily database for %s: %w", symbol, err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS daily_prices (
		date TEXT PRIMARY KEY,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		adj_close REAL NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create daily_prices table for %s: %w", symbol, err)
	}

	s.dbs[symbol] = db
	return db, nil
}

// Upsert stores bars for a symbol, replacing any existing bar for the same
// date.
func (s *DailyStore) Upsert(symbol string, bars []yahoo.HistoricalPrice) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	db, err := s.db(symbol)
	if err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (date, open, high, low, close, volume, adj_close)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			adj_close = excluded.adj_close
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, bar := range bars {
		if bar.Close <= 0 {
			continue
		}
		date := bar.Date.UTC().Format("2006-01-02")
		if _, err := stmt.Exec(date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.AdjClose); err != nil {
			return 0, fmt.Errorf("failed to upsert bar %s: %w", date, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	s.log.Debug().Str("symbol", symbol).Int("bars", stored).Msg("Stored daily bars")
	return stored, nil
}

// Bars returns the most recent bars for a symbol in ascending date order.
// A limit of zero or less returns all bars.
func (s *DailyStore) Bars(symbol string, limit int) ([]DailyBar, error) {
	db, err := s.db(symbol)
	if err != nil {
		return nil, err
	}

	query := `SELECT date, open, high, low, close, volume, adj_close FROM daily_prices ORDER BY date DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []DailyBar
	for rows.Next() {
		var bar DailyBar
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume, &bar.AdjClose); err != nil {
			return nil, fmt.Errorf("failed to scan daily bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily bars: %w", err)
	}

	// Reverse to ascending for consumers that compute indicators
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// LatestDate returns the date of the newest stored bar, empty when none exist
func (s *DailyStore) LatestDate(symbol string) (string, error) {
	db, err := s.db(symbol)
	if err != nil {
		return "", err
	}

	var date string
	err = db.QueryRow("SELECT date FROM daily_prices ORDER BY date DESC LIMIT 1").Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest date for %s: %w", symbol, err)
	}
	return date, nil
}

// sanitizeSymbol keeps the symbol safe as a filename component
func sanitizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	var b strings.Builder
	for _, r := range symbol {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		}
	}
	return b.String()
}
