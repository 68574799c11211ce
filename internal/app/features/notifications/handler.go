package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/atlasevents/backend/internal/app/lottery"
	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/system/timeouts"
	"github.com/atlasevents/backend/internal/app/watch"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves group notification sends, the send log, the SSE delivery
// stream, and lottery draws.
type Handler struct {
	DB      *mongo.Database
	Events  *eventstore.Store
	Notifs  *notifstore.Store
	Users   userstore.Directory
	Logs    *notiflogs.Store
	Lottery *lottery.Service
	Log     *zap.Logger
}

// NewHandler creates a new notifications handler.
func NewHandler(db *mongo.Database, events *eventstore.Store, notifs *notifstore.Store, users userstore.Directory, logs *notiflogs.Store, lotterySvc *lottery.Service, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Events:  events,
		Notifs:  notifs,
		Users:   users,
		Logs:    logs,
		Lottery: lotterySvc,
		Log:     logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// notifyRequest is the JSON body for a group send.
type notifyRequest struct {
	Group   string `json:"group"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// sendOutcome is one recipient's result in the notify response.
type sendOutcome struct {
	Email string `json:"email"`
	Error string `json:"error,omitempty"`
}

// ServeNotify handles POST /api/events/{id}/notify. The group selects which
// entrant list receives the send: waitlist, invited, or cancelled. Each
// recipient's outcome is reported independently.
func (h *Handler) ServeNotify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	event, err := h.Events.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	var results []notifstore.SendResult
	switch req.Group {
	case "waitlist":
		results = h.Notifs.SendToWaitlist(ctx, event, req.Title, req.Message)
	case "invited":
		results = h.Notifs.SendToInvited(ctx, event, req.Title, req.Message)
	case "cancelled":
		results = h.Notifs.SendToCancelled(ctx, event, req.Title, req.Message)
	default:
		writeError(w, http.StatusBadRequest, `group must be "waitlist", "invited", or "cancelled"`)
		return
	}

	outcomes := make([]sendOutcome, len(results))
	failed := 0
	for i, res := range results {
		outcomes[i] = sendOutcome{Email: res.Email}
		if res.Err != nil {
			outcomes[i].Error = res.Err.Error()
			failed++
		}
	}
	h.Log.Info("group notification sent",
		zap.String("event_id", event.ID),
		zap.String("group", req.Group),
		zap.Int("recipients", len(results)),
		zap.Int("failed", failed))
	writeJSON(w, http.StatusOK, map[string]any{
		"recipients": len(results),
		"failed":     failed,
		"results":    outcomes,
	})
}

// lotteryRequest is the JSON body for a draw.
type lotteryRequest struct {
	Count int `json:"count"`
}

// ServeLottery handles POST /api/events/{id}/lottery.
func (h *Handler) ServeLottery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req lotteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	winners, err := h.Lottery.Draw(ctx, id, req.Count)
	if err != nil {
		switch {
		case errors.Is(err, lottery.ErrEventNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, lottery.ErrNoCandidates):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.Log.Warn("lottery draw failed", zap.String("event_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "draw failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"winners": winners})
}

// ServeLogs handles GET /api/notification-logs with optional ?recipient= and
// ?limit= parameters.
func (h *Handler) ServeLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var limit int64
	fmt.Sscanf(r.URL.Query().Get("limit"), "%d", &limit)

	var (
		entries []models.NotificationLog
		err     error
	)
	if recipient := r.URL.Query().Get("recipient"); recipient != "" {
		entries, err = h.Logs.ListForRecipient(ctx, recipient, limit)
	} else {
		entries, err = h.Logs.List(ctx, limit)
	}
	if err != nil {
		h.Log.Warn("notification log list failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if entries == nil {
		entries = []models.NotificationLog{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ServeStream handles GET /api/notifications/stream?email=. It attaches a
// notification watcher for the recipient and relays each delivery as an SSE
// event until the client disconnects.
func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	deliveries := make(chan models.Notification, 16)
	watcher := watch.NewNotificationWatcher(h.DB, h.Notifs, h.Users, email,
		func(n models.Notification) {
			select {
			case deliveries <- n:
			default:
				// Client is not keeping up; drop rather than block delivery.
			}
		}, h.Log)
	watcher.Start(r.Context())
	defer watcher.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case n := <-deliveries:
			payload, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: notification\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
