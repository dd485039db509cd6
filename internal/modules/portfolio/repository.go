// Package portfolio tracks manually entered holdings and values them against
// the latest cached quotes.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
	"github.com/aristath/marginwatch/internal/modules/watchlist"
)

// Repository handles holding database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Create adds a holding
func (r *Repository) Create(ticker string, shares, costBasis float64) (*domain.Holding, error) {
	ticker = watchlist.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker must not be empty")
	}
	if shares <= 0 {
		return nil, fmt.Errorf("shares must be positive")
	}
	if costBasis < 0 {
		return nil, fmt.Errorf("cost basis must not be negative")
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		INSERT INTO holdings (ticker, shares, cost_basis, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, ticker, shares, costBasis, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create holding: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return &domain.Holding{
		ID:        id,
		Ticker:    ticker,
		Shares:    shares,
		CostBasis: costBasis,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetByID returns a holding by id, nil when not found
func (r *Repository) GetByID(id int64) (*domain.Holding, error) {
	row := r.db.QueryRow(`
		SELECT id, ticker, shares, cost_basis, created_at, updated_at
		FROM holdings WHERE id = ?
	`, id)

	holding, err := scanHolding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query holding: %w", err)
	}
	return holding, nil
}

// GetAll returns all holdings ordered by ticker
func (r *Repository) GetAll() ([]domain.Holding, error) {
	rows, err := r.db.Query(`
		SELECT id, ticker, shares, cost_basis, created_at, updated_at
		FROM holdings ORDER BY ticker, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, *holding)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return holdings, nil
}

// Update changes shares and cost basis for a holding, nil when not found
func (r *Repository) Update(id int64, shares, costBasis float64) (*domain.Holding, error) {
	if shares <= 0 {
		return nil, fmt.Errorf("shares must be positive")
	}
	if costBasis < 0 {
		return nil, fmt.Errorf("cost basis must not be negative")
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE holdings SET shares = ?, cost_basis = ?, updated_at = ? WHERE id = ?
	`, shares, costBasis, now.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.GetByID(id)
}

// Delete removes a holding
func (r *Repository) Delete(id int64) (bool, error) {
	result, err := r.db.Exec("DELETE FROM holdings WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s scanner) (*domain.Holding, error) {
	var h domain.Holding
	var createdAt, updatedAt string

	err := s.Scan(&h.ID, &h.Ticker, &h.Shares, &h.CostBasis, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		h.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		h.UpdatedAt = t
	}
	return &h, nil
}
