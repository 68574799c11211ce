package watch_test

import (
	"sync"
	"testing"
	"time"

	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/watch"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/atlasevents/backend/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// The stream itself needs a replica set, so these tests exercise the parts
// that run against any Mongo: the unread catch-up pass, delivery filtering,
// and the Start/Stop lifecycle.

type watchEnv struct {
	db     *mongo.Database
	store  *notifstore.Store
	users  *userstore.MemStore
	caught *displayCapture
}

type displayCapture struct {
	mu    sync.Mutex
	items []models.Notification
}

func (d *displayCapture) display(n models.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, n)
}

func (d *displayCapture) snapshot() []models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.Notification, len(d.items))
	copy(out, d.items)
	return out
}

func newWatchEnv(t *testing.T) *watchEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	users := userstore.NewMem()
	logs := notiflogs.New(db)
	return &watchEnv{
		db:     db,
		store:  notifstore.New(db, users, logs, zap.NewNop()),
		users:  users,
		caught: &displayCapture{},
	}
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestNotificationWatcher_CatchUpDeliversUnread(t *testing.T) {
	e := newWatchEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := e.store.SendDirect(ctx, "r@example.com", models.Notification{Title: "Backlog", Message: "M"}); err != nil {
		t.Fatalf("SendDirect failed: %v", err)
	}

	w := watch.NewNotificationWatcher(e.db, e.store, e.users, "R@Example.com", e.caught.display, zap.NewNop())
	w.Start(ctx)
	defer w.Stop()

	if !waitFor(t, func() bool { return len(e.caught.snapshot()) == 1 }) {
		t.Fatalf("expected backlog delivery, got %d", len(e.caught.snapshot()))
	}
	if e.caught.snapshot()[0].Title != "Backlog" {
		t.Errorf("Title: got %q", e.caught.snapshot()[0].Title)
	}

	// Delivered notifications are marked read.
	if !waitFor(t, func() bool {
		unread, err := e.store.UnreadForUser(ctx, "r@example.com")
		return err == nil && len(unread) == 0
	}) {
		t.Error("expected delivered notification to be marked read")
	}
}

func TestNotificationWatcher_BlockedOrganizerMarkedReadSilently(t *testing.T) {
	e := newWatchEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := e.users.Add(ctx, models.User{Name: "R", Email: "r@example.com", Role: "entrant"}); err != nil {
		t.Fatalf("Add user failed: %v", err)
	}
	if err := e.users.BlockOrganizer(ctx, "r@example.com", "bad@example.com"); err != nil {
		t.Fatalf("BlockOrganizer failed: %v", err)
	}

	if err := e.store.SendDirect(ctx, "r@example.com", models.Notification{
		Title: "Spam", Message: "M", FromOrganizer: "bad@example.com",
	}); err != nil {
		t.Fatalf("SendDirect failed: %v", err)
	}

	w := watch.NewNotificationWatcher(e.db, e.store, e.users, "r@example.com", e.caught.display, zap.NewNop())
	w.Start(ctx)
	defer w.Stop()

	// Marked read without ever reaching the display func.
	if !waitFor(t, func() bool {
		unread, err := e.store.UnreadForUser(ctx, "r@example.com")
		return err == nil && len(unread) == 0
	}) {
		t.Fatal("expected blocked notification to be marked read")
	}
	if got := len(e.caught.snapshot()); got != 0 {
		t.Errorf("expected no display for blocked organizer, got %d", got)
	}
}

func TestNotificationWatcher_DisabledRecipientKeepsBacklog(t *testing.T) {
	e := newWatchEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := e.users.Add(ctx, models.User{Name: "R", Email: "r@example.com", Role: "entrant"}); err != nil {
		t.Fatalf("Add user failed: %v", err)
	}
	if err := e.users.SetNotificationsEnabled(ctx, "r@example.com", false); err != nil {
		t.Fatalf("SetNotificationsEnabled failed: %v", err)
	}

	if err := e.store.SendDirect(ctx, "r@example.com", models.Notification{Title: "Held", Message: "M"}); err != nil {
		t.Fatalf("SendDirect failed: %v", err)
	}

	w := watch.NewNotificationWatcher(e.db, e.store, e.users, "r@example.com", e.caught.display, zap.NewNop())
	w.Start(ctx)
	time.Sleep(300 * time.Millisecond)
	w.Stop()

	if got := len(e.caught.snapshot()); got != 0 {
		t.Errorf("expected no display while disabled, got %d", got)
	}
	unread, err := e.store.UnreadForUser(ctx, "r@example.com")
	if err != nil {
		t.Fatalf("UnreadForUser failed: %v", err)
	}
	if len(unread) != 1 {
		t.Errorf("expected backlog to stay unread, got %d", len(unread))
	}
}

func TestNotificationWatcher_StartTwiceStopTwice(t *testing.T) {
	e := newWatchEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	w := watch.NewNotificationWatcher(e.db, e.store, e.users, "r@example.com", e.caught.display, zap.NewNop())
	w.Start(ctx)
	w.Start(ctx)
	w.Stop()
	w.Stop()
}
