package notes

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handlers contains HTTP handlers for the notes API
type Handlers struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandlers creates a new notes handlers instance
func NewHandlers(repo *Repository, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo: repo,
		log:  log.With().Str("handler", "notes").Logger(),
	}
}

type noteRequest struct {
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// HandleList returns notes, optionally filtered by ticker
// GET /api/notes?ticker=AAPL
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	notes, err := h.repo.ListByTicker(r.URL.Query().Get("ticker"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list notes")
		http.Error(w, "Failed to list notes", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, notes)
}

// HandleCreate adds a note
// POST /api/notes
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Ticker == "" || req.Title == "" {
		http.Error(w, "Ticker and title are required", http.StatusBadRequest)
		return
	}

	note, err := h.repo.Create(req.Ticker, req.Title, req.Body)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", req.Ticker).Msg("Failed to create note")
		http.Error(w, "Failed to create note", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, note)
}

// HandleGet returns a single note
// GET /api/notes/{uuid}
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	note, err := h.repo.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("uuid", id).Msg("Failed to get note")
		http.Error(w, "Failed to get note", http.StatusInternalServerError)
		return
	}
	if note == nil {
		http.Error(w, "Note not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, note)
}

// HandleUpdate changes a note's title and body
// PUT /api/notes/{uuid}
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	note, err := h.repo.Update(id, req.Title, req.Body)
	if err != nil {
		h.log.Error().Err(err).Str("uuid", id).Msg("Failed to update note")
		http.Error(w, "Failed to update note", http.StatusInternalServerError)
		return
	}
	if note == nil {
		http.Error(w, "Note not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, note)
}

// HandleDelete removes a note
// DELETE /api/notes/{uuid}
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	removed, err := h.repo.Delete(id)
	if err != nil {
		h.log.Error().Err(err).Str("uuid", id).Msg("Failed to delete note")
		http.Error(w, "Failed to delete note", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "Note not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, map[string]string{"status": "removed"})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
