package notifstore_test

import (
	"testing"

	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/atlasevents/backend/internal/testutil"
	"go.uber.org/zap"
)

// Tests run against a real test Mongo for the notification and log
// collections, with the in-memory user directory supplying the opt-out flags.

type env struct {
	store *notifstore.Store
	users *userstore.MemStore
	logs  *notiflogs.Store
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	users := userstore.NewMem()
	logs := notiflogs.New(db)
	return env{
		store: notifstore.New(db, users, logs, zap.NewNop()),
		users: users,
		logs:  logs,
	}
}

func TestStore_SendToUser_Enabled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := e.users.Add(ctx, models.User{Name: "R", Email: "r@example.com", Role: "entrant"}); err != nil {
		t.Fatalf("Add user failed: %v", err)
	}

	err := e.store.SendToUser(ctx, "R@Example.com", models.Notification{
		Title:   "Lottery Results",
		Message: "You were selected",
	})
	if err != nil {
		t.Fatalf("SendToUser failed: %v", err)
	}

	// Notification document written, unread
	unread, err := e.store.UnreadForUser(ctx, "r@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread notification, got %d", len(unread))
	}
	if unread[0].Read {
		t.Error("expected notification to start unread")
	}
	if unread[0].CreatedAt.IsZero() {
		t.Error("expected server-side CreatedAt")
	}

	// Exactly one SENT log entry
	entries, err := e.logs.ListForRecipient(ctx, "r@example.com", 10)
	if err != nil {
		t.Fatalf("ListForRecipient failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != models.SendStatusSent {
		t.Errorf("expected one SENT entry, got %+v", entries)
	}
}

func TestStore_SendToUser_OptedOut(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := e.users.Add(ctx, models.User{Name: "Out", Email: "out@example.com", Role: "entrant"}); err != nil {
		t.Fatalf("Add user failed: %v", err)
	}
	if err := e.users.SetNotificationsEnabled(ctx, "out@example.com", false); err != nil {
		t.Fatalf("SetNotificationsEnabled failed: %v", err)
	}

	err := e.store.SendToUser(ctx, "out@example.com", models.Notification{Title: "T", Message: "M"})
	if err != nil {
		t.Fatalf("SendToUser failed: %v", err)
	}

	// No notification document
	unread, err := e.store.UnreadForUser(ctx, "out@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("expected no notification for opted-out recipient, got %d", len(unread))
	}

	// Exactly one OPTED_OUT log entry
	entries, err := e.logs.ListForRecipient(ctx, "out@example.com", 10)
	if err != nil {
		t.Fatalf("ListForRecipient failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != models.SendStatusOptedOut {
		t.Errorf("expected one OPTED_OUT entry, got %+v", entries)
	}
}

func TestStore_SendToUser_UnknownRecipientDefaultsEnabled(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// No user document: the opt-out default (enabled) applies
	err := e.store.SendToUser(ctx, "ghost@example.com", models.Notification{Title: "T", Message: "M"})
	if err != nil {
		t.Fatalf("SendToUser failed: %v", err)
	}

	unread, err := e.store.UnreadForUser(ctx, "ghost@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Errorf("expected notification for unknown recipient, got %d", len(unread))
	}
}

func TestStore_SendToUser_SanitizesContent(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := e.store.SendToUser(ctx, "clean@example.com", models.Notification{
		Title:   "<b>Results</b>",
		Message: "Selected<script>alert('x')</script>",
	})
	if err != nil {
		t.Fatalf("SendToUser failed: %v", err)
	}

	unread, err := e.store.UnreadForUser(ctx, "clean@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(unread))
	}
	if unread[0].Title != "Results" {
		t.Errorf("Title: got %q, want stripped", unread[0].Title)
	}
	if unread[0].Message != "Selected" {
		t.Errorf("Message: got %q, want stripped", unread[0].Message)
	}
}

func TestStore_SendToUsers_IndependentCopies(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	emails := []string{"a@example.com", "b@example.com", "c@example.com"}
	results := e.store.SendToUsers(ctx, emails, models.Notification{Title: "T", Message: "M"})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("result %d: unexpected error %v", i, res.Err)
		}
	}

	// Each recipient has their own document
	for _, email := range emails {
		unread, err := e.store.UnreadForUser(ctx, email)
		if err != nil {
			t.Fatalf("UnreadForUser failed: %v", err)
		}
		if len(unread) != 1 {
			t.Errorf("recipient %s: expected 1 notification, got %d", email, len(unread))
		}
	}
}

func TestStore_SendToUsers_OptOutDoesNotAffectSiblings(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := e.users.Add(ctx, models.User{Name: "Out", Email: "out@example.com", Role: "entrant"}); err != nil {
		t.Fatalf("Add user failed: %v", err)
	}
	if err := e.users.SetNotificationsEnabled(ctx, "out@example.com", false); err != nil {
		t.Fatalf("SetNotificationsEnabled failed: %v", err)
	}

	results := e.store.SendToUsers(ctx, []string{"out@example.com", "in@example.com"},
		models.Notification{Title: "T", Message: "M"})
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("result %d: unexpected error %v", i, res.Err)
		}
	}

	unread, err := e.store.UnreadForUser(ctx, "in@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Errorf("expected enabled sibling to receive, got %d", len(unread))
	}
	unread, err = e.store.UnreadForUser(ctx, "out@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("expected opted-out recipient suppressed, got %d", len(unread))
	}
}

func TestStore_SendToWaitlist_GroupType(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	event := &models.Event{
		ID:             "evt-1",
		Name:           "Swim Lessons",
		OrganizerEmail: "org@example.com",
		Waitlist: []models.Entrant{
			{Name: "A", Email: "a@example.com"},
			{Name: "B", Email: "b@example.com"},
		},
	}

	results := e.store.SendToWaitlist(ctx, event, "Update", "Schedule changed")
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	unread, err := e.store.UnreadForUser(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(unread))
	}
	n := unread[0]
	if n.GroupType != models.GroupWaitlist {
		t.Errorf("GroupType: got %q, want %q", n.GroupType, models.GroupWaitlist)
	}
	if n.EventName != "Swim Lessons" || n.FromOrganizer != "org@example.com" {
		t.Errorf("expected event context on notification, got %+v", n)
	}
}

func TestStore_MarkRead(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := e.store.SendToUser(ctx, "read@example.com", models.Notification{Title: "T", Message: "M"}); err != nil {
		t.Fatalf("SendToUser failed: %v", err)
	}

	unread, err := e.store.UnreadForUser(ctx, "read@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread, got %d", len(unread))
	}

	if err := e.store.MarkRead(ctx, unread[0].ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	unread, err = e.store.UnreadForUser(ctx, "read@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("expected no unread after MarkRead, got %d", len(unread))
	}
}

func TestStore_SendDirect_BypassesOptOut(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := e.users.Add(ctx, models.User{Name: "Org", Email: "org@example.com", Role: "organizer"}); err != nil {
		t.Fatalf("Add user failed: %v", err)
	}
	if err := e.users.SetNotificationsEnabled(ctx, "org@example.com", false); err != nil {
		t.Fatalf("SetNotificationsEnabled failed: %v", err)
	}

	if err := e.store.SendDirect(ctx, "org@example.com", models.Notification{Title: "New entrant", Message: "X joined"}); err != nil {
		t.Fatalf("SendDirect failed: %v", err)
	}

	unread, err := e.store.UnreadForUser(ctx, "org@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Errorf("expected direct write despite opt-out, got %d", len(unread))
	}
}
