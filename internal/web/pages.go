package web

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/noteservice"
	"github.com/starford/quill/internal/ui"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type card struct {
	ID       string
	Title    string
	Body     template.HTML
	Modified string
}

type pageData struct {
	View          ui.View
	Cards         []card
	Placeholder   string
	ConfirmPrompt string
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int) {
	v, err := s.ctrl.View(r.Context())
	if err != nil {
		s.log.Error("view failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data := pageData{
		View:          v,
		Cards:         make([]card, 0, len(v.Notes)),
		Placeholder:   ui.EmptyPlaceholder,
		ConfirmPrompt: ui.PromptConfirmDelete,
	}
	for _, n := range v.Notes {
		data.Cards = append(data.Cards, card{
			ID:       n.ID,
			Title:    n.Title,
			Body:     s.md.render(n.Content),
			Modified: ui.FormatTimestamp(n.Timestamp),
		})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		s.log.Error("render page failed", slog.String("error", err.Error()))
	}
}

// Index handles GET /.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK)
}

// OpenCreate handles POST /modal/new.
func (s *Server) OpenCreate(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.OpenCreate(r.Context()); err != nil {
		s.log.Error("open create failed", slog.String("error", err.Error()))
	}
	redirectHome(w, r)
}

// OpenEdit handles POST /modal/edit/{id}.
func (s *Server) OpenEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ctrl.OpenEdit(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.Error(w, "note not found", http.StatusNotFound)
			return
		}
		s.log.Error("open edit failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	redirectHome(w, r)
}

// Cancel handles POST /modal/cancel.
func (s *Server) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Cancel(r.Context()); err != nil {
		s.log.Error("cancel failed", slog.String("error", err.Error()))
	}
	redirectHome(w, r)
}

// Save handles POST /modal/save. A rejected save re-renders the page with
// the prompt and the modal still open.
func (s *Server) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	err := s.ctrl.Save(r.Context(), r.PostForm.Get("title"), r.PostForm.Get("content"))
	switch {
	case err == nil:
		s.notifyChanged("web")
	case noteservice.IsInvalid(err):
		s.renderPage(w, r, http.StatusUnprocessableEntity)
		return
	default:
		s.log.Warn("save not completed", slog.String("error", err.Error()))
	}
	redirectHome(w, r)
}

// RequestDelete handles POST /notes/{id}/delete.
func (s *Server) RequestDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.RequestDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.log.Error("request delete failed", slog.String("error", err.Error()))
	}
	redirectHome(w, r)
}

// ConfirmDelete handles POST /delete/confirm.
func (s *Server) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.ConfirmDelete(r.Context()); err != nil {
		s.log.Warn("delete not completed", slog.String("error", err.Error()))
	} else {
		s.notifyChanged("web")
	}
	redirectHome(w, r)
}

// DismissDelete handles POST /delete/dismiss.
func (s *Server) DismissDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.DismissDelete(r.Context()); err != nil {
		s.log.Error("dismiss delete failed", slog.String("error", err.Error()))
	}
	redirectHome(w, r)
}
