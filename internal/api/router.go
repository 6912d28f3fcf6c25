package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Graph.
	r.Get("/graph", h.Graph)

	// Nodes CRUD. Node IDs are absolute paths, hence the wildcard routes.
	r.Post("/nodes", h.CreateNode)
	r.Get("/nodes/*", h.GetNode)
	r.Put("/nodes/*", h.UpdateNode)
	r.Delete("/nodes/*", h.DeleteNode)

	// Layout.
	r.Post("/positions", h.SetPositions)

	// Search and backlinks over the archive.
	r.Get("/search", h.Search)
	r.Get("/backlinks", h.Backlinks)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
