package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	"github.com/atlasevents/backend/internal/app/system/timeouts"
	"github.com/atlasevents/backend/internal/app/watch"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the event catalog and waitlist endpoints. Creating or
// deleting an event also attaches or detaches its waitlist watcher.
type Handler struct {
	Events *eventstore.Store
	Watch  *watch.Manager
	Log    *zap.Logger
}

// NewHandler creates a new events handler. The watch manager may be nil in
// tests that do not exercise the realtime path.
func NewHandler(events *eventstore.Store, watchMgr *watch.Manager, logger *zap.Logger) *Handler {
	return &Handler{Events: events, Watch: watchMgr, Log: logger}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), timeouts.Short())
}

// ServeCreate handles POST /api/events.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var e models.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	created, err := h.Events.Add(ctx, e)
	if err != nil {
		h.Log.Warn("event create failed", zap.String("name", e.Name), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.Watch != nil {
		h.Watch.WatchEvent(created.ID, created.OrganizerEmail)
	}
	writeJSON(w, http.StatusCreated, created)
}

// ServeList handles GET /api/events. Filters, first match wins: ?q= searches
// by keyword, ?organizer= and ?entrant= select by participation, ?available=1
// restricts to events with open slots. No filter lists everything.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestCtx(r)
	defer cancel()

	q := r.URL.Query()
	var (
		list []models.Event
		err  error
	)
	switch {
	case q.Get("q") != "":
		list, err = h.Events.SearchByKeyword(ctx, q.Get("q"))
	case q.Get("organizer") != "":
		list, err = h.Events.GetByOrganizer(ctx, q.Get("organizer"))
	case q.Get("entrant") != "":
		list, err = h.Events.GetByEntrant(ctx, q.Get("entrant"))
	case q.Get("available") == "1":
		list, err = h.Events.GetAvailable(ctx)
	default:
		list, err = h.Events.GetAll(ctx)
	}
	if err != nil {
		h.Log.Warn("event list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if list == nil {
		list = []models.Event{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ServeGet handles GET /api/events/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := requestCtx(r)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		h.Log.Warn("event lookup failed", zap.String("event_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// ServeUpdate handles PUT /api/events/{id}. The path id wins over any id in
// the body.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var e models.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	e.ID = id

	ctx, cancel := requestCtx(r)
	defer cancel()

	existing, err := h.Events.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	if err := h.Events.Update(ctx, e); err != nil {
		h.Log.Warn("event update failed", zap.String("event_id", id), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.Events.GetByID(ctx, id)
	if err != nil || updated == nil {
		writeError(w, http.StatusInternalServerError, "lookup after update failed")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ServeDelete handles DELETE /api/events/{id}. Deleting an absent event
// succeeds.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Events.Delete(ctx, id); err != nil {
		h.Log.Warn("event delete failed", zap.String("event_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	if h.Watch != nil {
		h.Watch.UnwatchEvent(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// joinRequest is the JSON body for joining a waitlist.
type joinRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ServeJoinWaitlist handles POST /api/events/{id}/waitlist.
func (h *Handler) ServeJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	e, err := h.Events.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	err = h.Events.JoinWaitlist(ctx, id, models.Entrant{Name: req.Name, Email: req.Email})
	if err != nil {
		if errors.Is(err, eventstore.ErrAlreadyOnWaitlist) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Warn("waitlist join failed",
			zap.String("event_id", id), zap.String("email", req.Email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "join failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeLeaveWaitlist handles DELETE /api/events/{id}/waitlist?email=.
// Leaving a waitlist you are not on succeeds.
func (h *Handler) ServeLeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Events.LeaveWaitlist(ctx, id, email); err != nil {
		h.Log.Warn("waitlist leave failed",
			zap.String("event_id", id), zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "leave failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeWaitlistEntries handles GET /api/events/{id}/waitlist, oldest first.
func (h *Handler) ServeWaitlistEntries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := requestCtx(r)
	defer cancel()

	entries, err := h.Events.WaitlistEntries(ctx, id)
	if err != nil {
		h.Log.Warn("waitlist entries failed", zap.String("event_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if entries == nil {
		entries = []models.WaitlistEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
