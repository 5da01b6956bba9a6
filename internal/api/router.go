package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Agent.
	r.Post("/ask", h.Ask)
	r.Get("/ask/stream", h.AskStream)

	// Index reads.
	r.Get("/search", h.Search)
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)
	r.Get("/tags", h.Tags)
	r.Get("/status", h.Status)

	// Index maintenance.
	r.Post("/index/rebuild", h.Rebuild)
	r.Post("/index/reconcile", h.Reconcile)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
