// Package history stores price observations. Intraday observations land in
// the main database as an append-only log; daily bars live in per-symbol
// database files managed by DailyStore.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
)

const defaultRecentLimit = 50

// timestampLayout keeps the fractional seconds fixed-width so the TEXT
// column sorts lexicographically in chronological order. RFC3339Nano drops
// trailing zeros, which breaks that.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Repository handles price history database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a new price history repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
		now: time.Now,
	}
}

// Append records one price observation for a stock. The timestamp is
// assigned here, not by the caller; every call produces a new record even
// when the price is unchanged.
func (r *Repository) Append(stockID int64, price float64, changePercent *float64) (*domain.PriceHistoryRecord, error) {
	if price <= 0 {
		return nil, fmt.Errorf("price must be positive, got %f", price)
	}

	now := r.now().UTC()
	result, err := r.db.Exec(`
		INSERT INTO price_history (stock_id, price, change_percent, timestamp)
		VALUES (?, ?, ?, ?)
	`, stockID, price, changePercent, now.Format(timestampLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to append price record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return &domain.PriceHistoryRecord{
		ID:            id,
		StockID:       stockID,
		Price:         price,
		ChangePercent: changePercent,
		Timestamp:     now,
	}, nil
}

// Recent returns the most recent records for a stock, newest first.
// A limit of zero or less falls back to the default of 50.
func (r *Repository) Recent(stockID int64, limit int) ([]domain.PriceHistoryRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := r.db.Query(`
		SELECT id, stock_id, price, change_percent, timestamp
		FROM price_history
		WHERE stock_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, stockID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var records []domain.PriceHistoryRecord
	for rows.Next() {
		var rec domain.PriceHistoryRecord
		var ts string
		if err := rows.Scan(&rec.ID, &rec.StockID, &rec.Price, &rec.ChangePercent, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan price record: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}

	return records, nil
}

// Count returns the number of stored records for a stock
func (r *Repository) Count(stockID int64) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM price_history WHERE stock_id = ?", stockID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count price history: %w", err)
	}
	return count, nil
}

// Prune deletes records older than the cutoff across all stocks and returns
// the number of rows removed.
func (r *Repository) Prune(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec("DELETE FROM price_history WHERE timestamp < ?", cutoff.UTC().Format(timestampLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune price history: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if removed > 0 {
		r.log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Pruned old price history")
	}
	return removed, nil
}
