package invites

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the invite endpoints, mounted at /api/invites.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServePending)
	r.Get("/count", h.ServeCount)
	r.Get("/{id}", h.ServeGet)
	r.Post("/{id}/response", h.ServeRespond)
	r.Delete("/{id}", h.ServeDelete)

	return r
}
