package events_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/atlasevents/backend/internal/app/features/events"
	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/atlasevents/backend/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func newRouter(t *testing.T) (chi.Router, *eventstore.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := eventstore.New(db)
	h := events.NewHandler(store, nil, zap.NewNop())
	return events.Routes(h, nil, nil), store
}

func createEvent(t *testing.T, r chi.Router, body string) models.Event {
	t.Helper()
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/", body))
	rec.AssertStatus(t, http.StatusCreated)

	var e models.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return e
}

func TestServeCreateAndGet(t *testing.T) {
	r, _ := newRouter(t)

	e := createEvent(t, r,
		`{"name":"Pottery Class","organizer_email":"Org@Example.com","slots":10}`)
	if e.ID == "" {
		t.Fatal("expected id assigned")
	}
	if e.OrganizerEmail != "org@example.com" {
		t.Errorf("OrganizerEmail: got %q, want normalized", e.OrganizerEmail)
	}

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+e.ID))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Pottery Class")
}

func TestServeCreate_EmptyName(t *testing.T) {
	r, _ := newRouter(t)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/",
		`{"name":"  ","organizer_email":"org@example.com"}`))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeGet_NotFound(t *testing.T) {
	r, _ := newRouter(t)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/missing"))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeList_Filters(t *testing.T) {
	r, _ := newRouter(t)

	createEvent(t, r, `{"name":"Open Event","organizer_email":"a@example.com","slots":3}`)
	createEvent(t, r, `{"name":"Full Event","organizer_email":"b@example.com","slots":0}`)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/?available=1"))
	rec.AssertStatus(t, http.StatusOK)

	var list []models.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Open Event" {
		t.Errorf("expected only the open event, got %+v", list)
	}

	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/?organizer=a@example.com"))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Open Event")
}

func TestServeList_Search(t *testing.T) {
	r, _ := newRouter(t)

	createEvent(t, r, `{"name":"Morning Swim","organizer_email":"a@example.com","slots":3}`)
	createEvent(t, r, `{"name":"Evening Run","organizer_email":"a@example.com","slots":3}`)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/?q=swi"))
	rec.AssertStatus(t, http.StatusOK)

	var list []models.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Morning Swim" {
		t.Errorf("expected the swim event, got %+v", list)
	}
}

func TestServeUpdate(t *testing.T) {
	r, _ := newRouter(t)

	e := createEvent(t, r, `{"name":"Before","organizer_email":"a@example.com","slots":3}`)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPut, "/"+e.ID,
		`{"name":"After","organizer_email":"a@example.com","slots":5}`))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "After")
}

func TestServeUpdate_NotFound(t *testing.T) {
	r, _ := newRouter(t)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPut, "/missing",
		`{"name":"X","organizer_email":"a@example.com"}`))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeDelete(t *testing.T) {
	r, _ := newRouter(t)

	e := createEvent(t, r, `{"name":"Doomed","organizer_email":"a@example.com","slots":3}`)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodDelete, "/"+e.ID))
	rec.AssertStatus(t, http.StatusNoContent)

	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+e.ID))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeJoinAndLeaveWaitlist(t *testing.T) {
	r, store := newRouter(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	e := createEvent(t, r, `{"name":"Popular","organizer_email":"a@example.com","slots":1}`)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+e.ID+"/waitlist",
		`{"name":"Dana","email":"dana@example.com"}`))
	rec.AssertStatus(t, http.StatusNoContent)

	// Joining twice conflicts.
	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+e.ID+"/waitlist",
		`{"name":"Dana","email":"dana@example.com"}`))
	rec.AssertStatus(t, http.StatusConflict)

	got, err := store.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.OnWaitlist("dana@example.com") {
		t.Fatal("expected entrant on waitlist")
	}

	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodDelete, "/"+e.ID+"/waitlist?email=dana@example.com"))
	rec.AssertStatus(t, http.StatusNoContent)

	got, err = store.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.OnWaitlist("dana@example.com") {
		t.Error("expected entrant removed from waitlist")
	}
}

func TestServeJoinWaitlist_UnknownEvent(t *testing.T) {
	r, _ := newRouter(t)

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/missing/waitlist",
		`{"name":"Dana","email":"dana@example.com"}`))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeWaitlistEntries(t *testing.T) {
	r, _ := newRouter(t)

	e := createEvent(t, r, `{"name":"Queue","organizer_email":"a@example.com","slots":1}`)

	for _, body := range []string{
		`{"name":"A","email":"a@example.com"}`,
		`{"name":"B","email":"b@example.com"}`,
	} {
		rec := testutil.NewRecorder()
		r.ServeHTTP(rec, testutil.NewJSONRequest(http.MethodPost, "/"+e.ID+"/waitlist", body))
		rec.AssertStatus(t, http.StatusNoContent)
	}

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.NewRequest(http.MethodGet, "/"+e.ID+"/waitlist"))
	rec.AssertStatus(t, http.StatusOK)

	var entries []models.WaitlistEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 || entries[0].EntrantEmail != "a@example.com" {
		t.Errorf("expected entries oldest first, got %+v", entries)
	}
}
