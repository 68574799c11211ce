package watch

import (
	"context"
	"sync"

	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Manager owns the live watchers: one waitlist watcher per organized event
// and one notification watcher per attached recipient. All watchers share the
// manager's base context and are torn down together on Stop.
type Manager struct {
	db     *mongo.Database
	events *eventstore.Store
	notifs *notifstore.Store
	users  userstore.Directory
	log    *zap.Logger

	mu         sync.Mutex
	base       context.Context
	cancel     context.CancelFunc
	waitlists  map[string]*WaitlistWatcher
	recipients map[string]*NotificationWatcher
}

func NewManager(db *mongo.Database, events *eventstore.Store, notifs *notifstore.Store, users userstore.Directory, log *zap.Logger) *Manager {
	return &Manager{
		db:         db,
		events:     events,
		notifs:     notifs,
		users:      users,
		log:        log,
		waitlists:  make(map[string]*WaitlistWatcher),
		recipients: make(map[string]*NotificationWatcher),
	}
}

// Start attaches waitlist watchers for every existing event. Calling Start
// while running is a no-op until Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return nil
	}
	m.base, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	events, err := m.events.GetAll(ctx)
	if err != nil {
		// Roll back so a later Start can try again.
		m.mu.Lock()
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
			m.base = nil
		}
		m.mu.Unlock()
		return err
	}
	for _, ev := range events {
		m.WatchEvent(ev.ID, ev.OrganizerEmail)
	}
	m.log.Info("watch manager started", zap.Int("events", len(events)))
	return nil
}

// Stop tears down every watcher and waits for them. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.base = nil
	waitlists := m.waitlists
	recipients := m.recipients
	m.waitlists = make(map[string]*WaitlistWatcher)
	m.recipients = make(map[string]*NotificationWatcher)
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	for _, w := range waitlists {
		w.Stop()
	}
	for _, w := range recipients {
		w.Stop()
	}
	m.log.Info("watch manager stopped")
}

// WatchEvent attaches a waitlist watcher for the event. Already-watched
// events are left alone.
func (m *Manager) WatchEvent(eventID, organizerEmail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return
	}
	if _, ok := m.waitlists[eventID]; ok {
		return
	}
	w := NewWaitlistWatcher(m.db, m.events, m.notifs, eventID, organizerEmail, m.log)
	w.Start(m.base)
	m.waitlists[eventID] = w
}

// UnwatchEvent detaches the event's waitlist watcher, typically on event
// deletion. Unknown ids are a no-op.
func (m *Manager) UnwatchEvent(eventID string) {
	m.mu.Lock()
	w, ok := m.waitlists[eventID]
	delete(m.waitlists, eventID)
	m.mu.Unlock()
	if ok {
		w.Stop()
	}
}

// WatchRecipient attaches a notification watcher delivering to the given
// display func. A recipient already being watched keeps their existing
// watcher; the new display func is ignored.
func (m *Manager) WatchRecipient(email string, display DisplayFunc) {
	email = normalize.Email(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return
	}
	if _, ok := m.recipients[email]; ok {
		return
	}
	w := NewNotificationWatcher(m.db, m.notifs, m.users, email, display, m.log)
	w.Start(m.base)
	m.recipients[email] = w
}

// UnwatchRecipient detaches the recipient's notification watcher.
func (m *Manager) UnwatchRecipient(email string) {
	email = normalize.Email(email)
	m.mu.Lock()
	w, ok := m.recipients[email]
	delete(m.recipients, email)
	m.mu.Unlock()
	if ok {
		w.Stop()
	}
}
