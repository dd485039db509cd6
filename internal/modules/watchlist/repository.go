// Package watchlist manages the list of watched stocks and their intrinsic
// value estimates.
package watchlist

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
)

// ErrDuplicateTicker is returned when the ticker is already on the watchlist
var ErrDuplicateTicker = errors.New("ticker already on watchlist")

// Repository handles watched stock database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new watchlist repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "watchlist").Logger(),
	}
}

// NormalizeTicker uppercases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Create adds a stock to the watchlist. The ticker is stored uppercase and
// must be unique.
func (r *Repository) Create(ticker string, intrinsicValue float64, convictionScore int) (*domain.WatchedStock, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker must not be empty")
	}
	if intrinsicValue < 0 {
		return nil, fmt.Errorf("intrinsic value must not be negative")
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		INSERT INTO watched_stocks (ticker, intrinsic_value, conviction_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, ticker, intrinsicValue, convictionScore, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTicker, ticker)
		}
		return nil, fmt.Errorf("failed to create watched stock: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return &domain.WatchedStock{
		ID:              id,
		Ticker:          ticker,
		IntrinsicValue:  intrinsicValue,
		ConvictionScore: convictionScore,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// GetByTicker returns a watched stock by ticker, nil if not found
func (r *Repository) GetByTicker(ticker string) (*domain.WatchedStock, error) {
	row := r.db.QueryRow(`
		SELECT id, ticker, intrinsic_value, conviction_score, created_at, updated_at
		FROM watched_stocks WHERE ticker = ?
	`, NormalizeTicker(ticker))

	stock, err := scanStock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watched stock: %w", err)
	}

	return stock, nil
}

// GetAll returns all watched stocks ordered by ticker
func (r *Repository) GetAll() ([]domain.WatchedStock, error) {
	rows, err := r.db.Query(`
		SELECT id, ticker, intrinsic_value, conviction_score, created_at, updated_at
		FROM watched_stocks ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched stocks: %w", err)
	}
	defer rows.Close()

	var stocks []domain.WatchedStock
	for rows.Next() {
		stock, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan watched stock: %w", err)
		}
		stocks = append(stocks, *stock)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watched stocks: %w", err)
	}

	return stocks, nil
}

// Update changes the intrinsic value and conviction score for a ticker
func (r *Repository) Update(ticker string, intrinsicValue float64, convictionScore int) (*domain.WatchedStock, error) {
	if intrinsicValue < 0 {
		return nil, fmt.Errorf("intrinsic value must not be negative")
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE watched_stocks
		SET intrinsic_value = ?, conviction_score = ?, updated_at = ?
		WHERE ticker = ?
	`, intrinsicValue, convictionScore, now.Format(time.RFC3339), NormalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("failed to update watched stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil // Not watched
	}

	return r.GetByTicker(ticker)
}

// Delete removes a stock from the watchlist. Price history cascades.
func (r *Repository) Delete(ticker string) (bool, error) {
	result, err := r.db.Exec("DELETE FROM watched_stocks WHERE ticker = ?", NormalizeTicker(ticker))
	if err != nil {
		return false, fmt.Errorf("failed to delete watched stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// scanner matches both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStock(s scanner) (*domain.WatchedStock, error) {
	var stock domain.WatchedStock
	var createdAt, updatedAt string

	err := s.Scan(&stock.ID, &stock.Ticker, &stock.IntrinsicValue, &stock.ConvictionScore, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		stock.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		stock.UpdatedAt = t
	}

	return &stock, nil
}
