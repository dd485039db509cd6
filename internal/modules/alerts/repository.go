package alerts

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
)

// Repository persists fired alerts for the dashboard feed.
// This is a log of what was sent, not the dedup state: the alert decision
// only ever consults the in-memory StateStore.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new alert repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "alerts").Logger(),
	}
}

// Record stores a fired alert and returns it with its assigned UUID
func (r *Repository) Record(ticker string, price, intrinsicValue, marginOfSafety float64) (*domain.Alert, error) {
	alert := &domain.Alert{
		UUID:           uuid.New().String(),
		Ticker:         ticker,
		Price:          price,
		IntrinsicValue: intrinsicValue,
		MarginOfSafety: marginOfSafety,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := r.db.Exec(`
		INSERT INTO alerts (uuid, ticker, price, intrinsic_value, margin_of_safety, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, alert.UUID, alert.Ticker, alert.Price, alert.IntrinsicValue, alert.MarginOfSafety,
		alert.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to record alert: %w", err)
	}

	return alert, nil
}

// Recent returns the most recent fired alerts, newest first
func (r *Repository) Recent(limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT uuid, ticker, price, intrinsic_value, margin_of_safety, created_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var createdAt string

		if err := rows.Scan(&a.UUID, &a.Ticker, &a.Price, &a.IntrinsicValue, &a.MarginOfSafety, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			a.CreatedAt = t
		}

		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}
