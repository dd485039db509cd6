// Package notes stores free-form research notes attached to tickers.
package notes

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/marginwatch/internal/domain"
	"github.com/aristath/marginwatch/internal/modules/watchlist"
)

// Repository handles note database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new notes repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "notes").Logger(),
	}
}

// Create adds a note for a ticker
func (r *Repository) Create(ticker, title, body string) (*domain.Note, error) {
	ticker = watchlist.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker must not be empty")
	}
	if title == "" {
		return nil, fmt.Errorf("title must not be empty")
	}

	now := time.Now().UTC()
	note := &domain.Note{
		UUID:      uuid.New().String(),
		Ticker:    ticker,
		Title:     title,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.Exec(`
		INSERT INTO notes (uuid, ticker, title, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, note.UUID, note.Ticker, note.Title, note.Body,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	return note, nil
}

// Get returns a note by uuid, nil when not found
func (r *Repository) Get(id string) (*domain.Note, error) {
	row := r.db.QueryRow(`
		SELECT uuid, ticker, title, body, created_at, updated_at
		FROM notes WHERE uuid = ?
	`, id)

	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return note, nil
}

// ListByTicker returns notes for a ticker, newest first. An empty ticker
// returns all notes.
func (r *Repository) ListByTicker(ticker string) ([]domain.Note, error) {
	query := `SELECT uuid, ticker, title, body, created_at, updated_at FROM notes`
	args := []interface{}{}
	if ticker != "" {
		query += " WHERE ticker = ?"
		args = append(args, watchlist.NormalizeTicker(ticker))
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, *note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}

// Update changes a note's title and body, nil when not found
func (r *Repository) Update(id, title, body string) (*domain.Note, error) {
	if title == "" {
		return nil, fmt.Errorf("title must not be empty")
	}

	now := time.Now().UTC()
	result, err := r.db.Exec(`
		UPDATE notes SET title = ?, body = ?, updated_at = ? WHERE uuid = ?
	`, title, body, now.Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return r.Get(id)
}

// Delete removes a note
func (r *Repository) Delete(id string) (bool, error) {
	result, err := r.db.Exec("DELETE FROM notes WHERE uuid = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
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

func scanNote(s scanner) (*domain.Note, error) {
	var note domain.Note
	var createdAt, updatedAt string

	err := s.Scan(&note.UUID, &note.Ticker, &note.Title, &note.Body, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		note.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		note.UpdatedAt = t
	}
	return &note, nil
}
