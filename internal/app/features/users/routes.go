package users

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the user directory endpoints, mounted at
// /api/users.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.ServeCreate)
	r.Get("/", h.ServeList)
	r.Get("/{email}", h.ServeGet)
	r.Put("/{email}", h.ServeReplace)
	r.Delete("/{email}", h.ServeDelete)
	r.Put("/{email}/notifications-enabled", h.ServeSetNotificationsEnabled)
	r.Post("/{email}/blocked/{organizer}", h.ServeBlockOrganizer)
	r.Delete("/{email}/blocked/{organizer}", h.ServeUnblockOrganizer)

	return r
}
