package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/app/system/timeouts"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the user directory endpoints.
type Handler struct {
	Users userstore.Directory
	Log   *zap.Logger
}

// NewHandler creates a new users handler.
func NewHandler(users userstore.Directory, logger *zap.Logger) *Handler {
	return &Handler{Users: users, Log: logger}
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

// userRequest is the JSON body for creating or replacing a user. The model's
// password field never round-trips through JSON, so the body carries it
// separately.
type userRequest struct {
	models.User
	Password string `json:"password"`
}

func (req *userRequest) user() models.User {
	u := req.User
	u.Password = req.Password
	return u
}

// ServeCreate handles POST /api/users.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	u := req.user()

	ctx, cancel := requestCtx(r)
	defer cancel()

	created, err := h.Users.Add(ctx, u)
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Warn("user create failed", zap.String("email", u.Email), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ServeGet handles GET /api/users/{email}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	ctx, cancel := requestCtx(r)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, email)
	if err != nil {
		h.Log.Warn("user lookup failed", zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ServeReplace handles PUT /api/users/{email}. The path email identifies the
// existing document; the body may carry a new email.
func (h *Handler) ServeReplace(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	updated, err := h.Users.Replace(ctx, email, req.user())
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Warn("user replace failed", zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ServeDelete handles DELETE /api/users/{email}. Deleting an absent user
// succeeds.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Users.Delete(ctx, email); err != nil {
		h.Log.Warn("user delete failed", zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeList handles GET /api/users with an optional ?role= filter.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	role := normalize.QueryParam(r.URL.Query().Get("role"))

	ctx, cancel := requestCtx(r)
	defer cancel()

	list, err := h.Users.List(ctx, role)
	if err != nil {
		h.Log.Warn("user list failed", zap.String("role", role), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if list == nil {
		list = []models.User{}
	}
	writeJSON(w, http.StatusOK, list)
}

// notificationsEnabledRequest is the JSON body for the opt-out toggle.
type notificationsEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ServeSetNotificationsEnabled handles PUT /api/users/{email}/notifications-enabled.
func (h *Handler) ServeSetNotificationsEnabled(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var req notificationsEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Users.SetNotificationsEnabled(ctx, email, req.Enabled); err != nil {
		h.Log.Warn("opt-out toggle failed", zap.String("email", email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeBlockOrganizer handles POST /api/users/{email}/blocked/{organizer}.
func (h *Handler) ServeBlockOrganizer(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	organizer := chi.URLParam(r, "organizer")

	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Users.BlockOrganizer(ctx, email, organizer); err != nil {
		h.Log.Warn("block organizer failed",
			zap.String("email", email), zap.String("organizer", organizer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeUnblockOrganizer handles DELETE /api/users/{email}/blocked/{organizer}.
func (h *Handler) ServeUnblockOrganizer(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	organizer := chi.URLParam(r, "organizer")

	ctx, cancel := requestCtx(r)
	defer cancel()

	if err := h.Users.UnblockOrganizer(ctx, email, organizer); err != nil {
		h.Log.Warn("unblock organizer failed",
			zap.String("email", email), zap.String("organizer", organizer), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
