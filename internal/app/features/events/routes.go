package events

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the event endpoints, mounted at /api/events.
// The notify and lottery handlers live in the notifications feature but are
// scoped under an event id, so they are passed in here; nil skips them.
func Routes(h *Handler, notify, lottery http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.ServeCreate)
	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeGet)
	r.Put("/{id}", h.ServeUpdate)
	r.Delete("/{id}", h.ServeDelete)
	r.Get("/{id}/waitlist", h.ServeWaitlistEntries)
	r.Post("/{id}/waitlist", h.ServeJoinWaitlist)
	r.Delete("/{id}/waitlist", h.ServeLeaveWaitlist)

	if notify != nil {
		r.Post("/{id}/notify", notify)
	}
	if lottery != nil {
		r.Post("/{id}/lottery", lottery)
	}

	return r
}
