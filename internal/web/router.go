// Package web serves the note list page and the JSON API using chi.
package web

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/noteservice"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/ui"
)

// Server holds the dependencies shared by page and API handlers.
type Server struct {
	ctrl   *ui.Controller
	svc    *noteservice.Service
	broker *sse.Broker
	md     markdown
	log    *slog.Logger
}

// NewServer creates a Server. broker may be nil, in which case no change
// events are published and /api/events is not mounted.
func NewServer(ctrl *ui.Controller, svc *noteservice.Service, broker *sse.Broker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctrl: ctrl, svc: svc, broker: broker, md: newMarkdown(), log: logger}
}

// Router builds the chi router with page routes at the root and the JSON API
// under /api. authEnabled controls whether Bearer token auth is enforced on /api.
func (s *Server) Router(authEnabled bool, token string) chi.Router {
	r := chi.NewRouter()
	// Browsers mark cross-site form posts; those are refused so another site
	// cannot drive the modal or confirm a delete. Clients that send neither
	// Sec-Fetch-Site nor Origin pass.
	r.Use(http.NewCrossOriginProtection().Handler)

	r.Get("/", s.Index)
	r.Post("/modal/new", s.OpenCreate)
	r.Post("/modal/edit/{id}", s.OpenEdit)
	r.Post("/modal/cancel", s.Cancel)
	r.Post("/modal/save", s.Save)
	r.Post("/notes/{id}/delete", s.RequestDelete)
	r.Post("/delete/confirm", s.ConfirmDelete)
	r.Post("/delete/dismiss", s.DismissDelete)

	r.Route("/api", func(api chi.Router) {
		api.Use(AuthMiddleware(authEnabled, token))
		api.Get("/notes", s.ListNotes)
		api.Post("/notes", s.CreateNote)
		api.Get("/notes/{id}", s.GetNote)
		api.Put("/notes/{id}", s.UpdateNote)
		api.Delete("/notes/{id}", s.DeleteNote)
		if s.broker != nil {
			api.Get("/events", s.broker.ServeHTTP)
		}
	})

	return r
}

func (s *Server) notifyChanged(source string) {
	if s.broker != nil {
		s.broker.NotesChanged(source)
	}
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
