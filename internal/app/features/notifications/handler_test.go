package notifications_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/atlasevents/backend/internal/app/features/notifications"
	"github.com/atlasevents/backend/internal/app/lottery"
	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	invitestore "github.com/atlasevents/backend/internal/app/store/invites"
	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/atlasevents/backend/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type notifEnv struct {
	handler *notifications.Handler
	events  *eventstore.Store
	notifs  *notifstore.Store
	logs    *notiflogs.Store
}

// eventRouter mounts the event-scoped notify and lottery endpoints the way
// the app router does.
func (e notifEnv) eventRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/{id}/notify", e.handler.ServeNotify)
	r.Post("/{id}/lottery", e.handler.ServeLottery)
	return r
}

func newNotifEnv(t *testing.T) notifEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	users := userstore.NewMem()
	events := eventstore.New(db)
	logs := notiflogs.New(db)
	notifs := notifstore.New(db, users, logs, zap.NewNop())
	invStore := invitestore.New(db, zap.NewNop())
	svc := lottery.New(events, invStore, notifs, 24*time.Hour, zap.NewNop())
	return notifEnv{
		handler: notifications.NewHandler(db, events, notifs, users, logs, svc, zap.NewNop()),
		events:  events,
		notifs:  notifs,
		logs:    logs,
	}
}

func seedEventWithWaitlist(t *testing.T, e notifEnv) models.Event {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	ev, err := e.events.Add(ctx, models.Event{
		Name:           "Bike Tour",
		OrganizerEmail: "org@example.com",
		Slots:          2,
		Waitlist: []models.Entrant{
			{Name: "A", Email: "a@example.com"},
			{Name: "B", Email: "b@example.com"},
		},
	})
	if err != nil {
		t.Fatalf("Add event failed: %v", err)
	}
	return ev
}

func TestServeNotify_Waitlist(t *testing.T) {
	e := newNotifEnv(t)
	ev := seedEventWithWaitlist(t, e)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := testutil.NewRecorder()
	e.eventRouter().ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+ev.ID+"/notify",
		`{"group":"waitlist","title":"Update","message":"Route changed"}`))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"recipients":2`)
	rec.AssertContains(t, `"failed":0`)

	unread, err := e.notifs.UnreadForUser(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 || unread[0].GroupType != models.GroupWaitlist {
		t.Errorf("expected one waitlist notification, got %+v", unread)
	}
}

func TestServeNotify_BadGroup(t *testing.T) {
	e := newNotifEnv(t)
	ev := seedEventWithWaitlist(t, e)

	rec := testutil.NewRecorder()
	e.eventRouter().ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+ev.ID+"/notify",
		`{"group":"everybody","title":"T","message":"M"}`))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeNotify_UnknownEvent(t *testing.T) {
	e := newNotifEnv(t)

	rec := testutil.NewRecorder()
	e.eventRouter().ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/missing/notify",
		`{"group":"waitlist","title":"T","message":"M"}`))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeLottery(t *testing.T) {
	e := newNotifEnv(t)
	ev := seedEventWithWaitlist(t, e)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := testutil.NewRecorder()
	e.eventRouter().ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+ev.ID+"/lottery",
		`{"count":1}`))
	rec.AssertStatus(t, http.StatusOK)

	var resp struct {
		Winners []models.Entrant `json:"winners"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Winners) != 1 {
		t.Fatalf("expected 1 winner, got %d", len(resp.Winners))
	}

	got, err := e.events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.IsInvited(resp.Winners[0].Email) {
		t.Error("expected winner moved to invited list")
	}
}

func TestServeLottery_EmptyWaitlist(t *testing.T) {
	e := newNotifEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ev, err := e.events.Add(ctx, models.Event{Name: "Quiet", OrganizerEmail: "org@example.com"})
	if err != nil {
		t.Fatalf("Add event failed: %v", err)
	}

	rec := testutil.NewRecorder()
	e.eventRouter().ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+ev.ID+"/lottery",
		`{"count":1}`))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestServeLogs(t *testing.T) {
	e := newNotifEnv(t)
	ev := seedEventWithWaitlist(t, e)

	rec := testutil.NewRecorder()
	e.eventRouter().ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+ev.ID+"/notify",
		`{"group":"waitlist","title":"Update","message":"M"}`))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	e.handler.ServeLogs(rec, testutil.NewRequest(http.MethodGet, "/api/notification-logs"))
	rec.AssertStatus(t, http.StatusOK)

	var entries []models.NotificationLog
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected a log entry per recipient, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.Status != models.SendStatusSent {
			t.Errorf("expected SENT entries, got %q", entry.Status)
		}
	}
}

func TestServeLogs_RecipientFilter(t *testing.T) {
	e := newNotifEnv(t)
	ev := seedEventWithWaitlist(t, e)

	rec := testutil.NewRecorder()
	e.eventRouter().ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+ev.ID+"/notify",
		`{"group":"waitlist","title":"Update","message":"M"}`))
	rec.AssertStatus(t, http.StatusOK)

	rec = testutil.NewRecorder()
	e.handler.ServeLogs(rec, testutil.NewRequest(http.MethodGet,
		"/api/notification-logs?recipient=a@example.com"))
	rec.AssertStatus(t, http.StatusOK)

	var entries []models.NotificationLog
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].Recipient != "a@example.com" {
		t.Errorf("expected only the filtered recipient, got %+v", entries)
	}
}

func TestServeStream_MissingEmail(t *testing.T) {
	e := newNotifEnv(t)

	rec := testutil.NewRecorder()
	e.handler.ServeStream(rec, testutil.NewRequest(http.MethodGet, "/api/notifications/stream"))
	rec.AssertStatus(t, http.StatusBadRequest)
}
