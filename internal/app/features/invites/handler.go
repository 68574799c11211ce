package invites

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atlasevents/backend/internal/app/lottery"
	invitestore "github.com/atlasevents/backend/internal/app/store/invites"
	"github.com/atlasevents/backend/internal/app/system/timeouts"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the invite endpoints. Responses go through the lottery
// service so the event's entrant lists stay in step with the invite status.
type Handler struct {
	Invites *invitestore.Store
	Lottery *lottery.Service
	Log     *zap.Logger
}

// NewHandler creates a new invites handler.
func NewHandler(invites *invitestore.Store, lotterySvc *lottery.Service, logger *zap.Logger) *Handler {
	return &Handler{Invites: invites, Lottery: lotterySvc, Log: logger}
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

// ServePending handles GET /api/invites?recipient=, newest first.
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")
	if recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient query parameter is required")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	list, err := h.Invites.PendingForUser(ctx, recipient)
	if err != nil {
		h.Log.Warn("pending invites failed", zap.String("recipient", recipient), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if list == nil {
		list = []models.Invite{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ServeCount handles GET /api/invites/count?recipient=.
func (h *Handler) ServeCount(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")
	if recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient query parameter is required")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	count, err := h.Invites.CountPendingForUser(ctx, recipient)
	if err != nil {
		h.Log.Warn("pending invite count failed", zap.String("recipient", recipient), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "count failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// ServeGet handles GET /api/invites/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := requestCtx(r)
	defer cancel()

	inv, err := h.Invites.GetByID(ctx, id)
	if err != nil {
		h.Log.Warn("invite lookup failed", zap.String("invite_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "invite not found")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// responseRequest is the JSON body for answering an invite.
type responseRequest struct {
	Accept bool `json:"accept"`
}

// ServeRespond handles POST /api/invites/{id}/response.
func (h *Handler) ServeRespond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req responseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	inv, err := h.Lottery.Respond(ctx, id, req.Accept)
	if err != nil {
		switch {
		case errors.Is(err, lottery.ErrInviteNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, lottery.ErrInviteExpired):
			writeError(w, http.StatusGone, err.Error())
		case errors.Is(err, lottery.ErrInviteClosed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.Log.Warn("invite response failed", zap.String("invite_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "response failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// ServeDelete handles DELETE /api/invites/{id}. Deleting an absent invite
// succeeds.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Invites.Delete(ctx, id); err != nil {
		h.Log.Warn("invite delete failed", zap.String("invite_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
