package notifications

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the notification stream, mounted at
// /api/notifications. The event-scoped notify and lottery handlers are
// registered by the events feature; the send log has its own top-level path.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/stream", h.ServeStream)

	return r
}
