package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/noteservice"
	"github.com/starford/quill/internal/sse"
)

// NoteRequest is the request body for creating or replacing a note.
type NoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NoteListResponse wraps the sorted note list.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
}

func decodeNote(w http.ResponseWriter, r *http.Request) (NoteRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	return req, true
}

// afterMutation re-renders the page state, announces the touched note and
// tells open pages to refresh.
func (s *Server) afterMutation(r *http.Request, event, id string) {
	if err := s.ctrl.Reload(r.Context()); err != nil {
		s.log.Warn("reload after api mutation failed", slog.String("error", err.Error()))
	}
	if s.broker != nil {
		s.broker.Publish(sse.Event{Type: event, Data: map[string]string{"id": id}})
	}
	s.notifyChanged("api")
}

// ListNotes handles GET /api/notes.
func (s *Server) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.svc.List(r.Context())
	if err != nil {
		s.log.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes})
}

// GetNote handles GET /api/notes/{id}.
func (s *Server) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		s.log.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
func (s *Server) CreateNote(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNote(w, r)
	if !ok {
		return
	}
	n, err := s.svc.Save(r.Context(), "", req.Title, req.Content)
	if err != nil {
		s.writeSaveError(w, "", err)
		return
	}
	s.afterMutation(r, sse.EventNoteSaved, n.ID)
	writeJSON(w, http.StatusCreated, n)
}

// UpdateNote handles PUT /api/notes/{id}. The note must already exist.
func (s *Server) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := decodeNote(w, r)
	if !ok {
		return
	}
	if err := noteservice.Validate(req.Title, req.Content); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(noteservice.PromptMissingFields))
		return
	}
	if _, err := s.svc.Get(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		s.writeSaveError(w, id, err)
		return
	}
	n, err := s.svc.Save(r.Context(), id, req.Title, req.Content)
	if err != nil {
		s.writeSaveError(w, id, err)
		return
	}
	s.afterMutation(r, sse.EventNoteSaved, n.ID)
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}. Deleting a missing id succeeds.
func (s *Server) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.log.Error("delete note failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	s.afterMutation(r, sse.EventNoteDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeSaveError(w http.ResponseWriter, id string, err error) {
	if noteservice.IsInvalid(err) {
		writeJSON(w, http.StatusBadRequest, errorBody(noteservice.PromptMissingFields))
		return
	}
	s.log.Error("save note failed", slog.String("id", id), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
