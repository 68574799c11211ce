package watch_test

import (
	"context"
	"testing"

	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/watch"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/atlasevents/backend/internal/testutil"
	"go.uber.org/zap"
)

func TestManager_StartStopLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.NewMem()
	events := eventstore.New(db)
	notifs := notifstore.New(db, users, notiflogs.New(db), zap.NewNop())

	if _, err := events.Add(ctx, models.Event{Name: "Pottery", OrganizerEmail: "org@example.com", Slots: 5}); err != nil {
		t.Fatalf("Add event failed: %v", err)
	}

	m := watch.NewManager(db, events, notifs, users, zap.NewNop())
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Second Start is a no-op.
	if err := m.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	m.Stop()
	m.Stop()
}

func TestManager_WatchBeforeStartIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)

	users := userstore.NewMem()
	events := eventstore.New(db)
	notifs := notifstore.New(db, users, notiflogs.New(db), zap.NewNop())

	m := watch.NewManager(db, events, notifs, users, zap.NewNop())
	m.WatchEvent("evt-1", "org@example.com")
	m.WatchRecipient("r@example.com", nil)
	m.UnwatchEvent("evt-1")
	m.UnwatchRecipient("r@example.com")
	m.Stop()
}

func TestManager_FailedStartAllowsRetry(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.NewMem()
	events := eventstore.New(db)
	notifs := notifstore.New(db, users, notiflogs.New(db), zap.NewNop())

	m := watch.NewManager(db, events, notifs, users, zap.NewNop())

	dead, kill := context.WithCancel(context.Background())
	kill()
	if err := m.Start(dead); err == nil {
		t.Fatal("expected Start with a cancelled context to fail")
	}

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start after failed attempt: %v", err)
	}
	m.Stop()
}

func TestManager_UnwatchUnknownIsNoOp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	users := userstore.NewMem()
	events := eventstore.New(db)
	notifs := notifstore.New(db, users, notiflogs.New(db), zap.NewNop())

	m := watch.NewManager(db, events, notifs, users, zap.NewNop())
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	m.UnwatchEvent("missing")
	m.UnwatchRecipient("missing@example.com")
}
