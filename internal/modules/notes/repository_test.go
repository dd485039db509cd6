package notes

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/marginwatch/internal/database"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())

	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)

	note, err := repo.Create("aapl", "Moat analysis", "Strong ecosystem lock-in.")
	require.NoError(t, err)
	assert.NotEmpty(t, note.UUID)
	assert.Equal(t, "AAPL", note.Ticker)

	found, err := repo.Get(note.UUID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Moat analysis", found.Title)
	assert.Equal(t, "Strong ecosystem lock-in.", found.Body)
}

func TestCreateValidation(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Create("", "title", "body")
	assert.Error(t, err)

	_, err = repo.Create("AAPL", "", "body")
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	repo := newTestRepo(t)

	note, err := repo.Get("does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, note)
}

func TestListByTicker(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Create("AAPL", "First", "")
	require.NoError(t, err)
	_, err = repo.Create("AAPL", "Second", "")
	require.NoError(t, err)
	_, err = repo.Create("MSFT", "Other", "")
	require.NoError(t, err)

	notes, err := repo.ListByTicker("aapl")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Second", notes[0].Title)
	assert.Equal(t, "First", notes[1].Title)

	all, err := repo.ListByTicker("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdate(t *testing.T) {
	repo := newTestRepo(t)

	note, err := repo.Create("AAPL", "Draft", "wip")
	require.NoError(t, err)

	updated, err := repo.Update(note.UUID, "Final", "done")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "done", updated.Body)

	missing, err := repo.Update("does-not-exist", "x", "y")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)

	note, err := repo.Create("AAPL", "Temp", "")
	require.NoError(t, err)

	removed, err := repo.Delete(note.UUID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(note.UUID)
	require.NoError(t, err)
	assert.False(t, removed)
}
