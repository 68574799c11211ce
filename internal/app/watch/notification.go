// Package watch hosts the change-stream subscriptions behind the realtime
// features: per-recipient notification delivery and per-event waitlist
// monitoring. Each watcher splits the stream read from its side effects with
// a buffered channel so a slow write never stalls the subscription.
package watch

import (
	"context"
	"sync"
	"time"

	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// retryBackoff is the pause before resubscribing after a stream error.
const retryBackoff = 2 * time.Second

// eventBuffer sizes each watcher's channel between the stream goroutine and
// its consumer.
const eventBuffer = 64

// DisplayFunc receives each notification delivered to the watched recipient.
type DisplayFunc func(n models.Notification)

// NotificationWatcher follows one recipient's notifications collection slice.
// Unread additions are handed to the display func and marked read. Deliveries
// honor the recipient's live settings: notifications from blocked organizers
// are marked read silently, and nothing is displayed while the recipient has
// notifications disabled.
type NotificationWatcher struct {
	email   string
	db      *mongo.Database
	notifs  *notifstore.Store
	users   userstore.Directory
	display DisplayFunc
	log     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotificationWatcher(db *mongo.Database, notifs *notifstore.Store, users userstore.Directory, email string, display DisplayFunc, log *zap.Logger) *NotificationWatcher {
	return &NotificationWatcher{
		email:   normalize.Email(email),
		db:      db,
		notifs:  notifs,
		users:   users,
		display: display,
		log:     log,
	}
}

// Start begins watching. Calling Start while running is a no-op until Stop.
// Existing unread notifications are delivered before the stream attaches.
func (w *NotificationWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)

	events := make(chan models.Notification, eventBuffer)

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		defer close(events)
		w.streamLoop(ctx, events)
	}()
	go func() {
		defer w.wg.Done()
		w.consume(ctx, events)
	}()
}

// Stop detaches the stream and waits for in-flight deliveries. Idempotent.
func (w *NotificationWatcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
}

func (w *NotificationWatcher) streamLoop(ctx context.Context, events chan<- models.Notification) {
	// Catch-up pass: anything unread before the stream attaches.
	unread, err := w.notifs.UnreadForUser(ctx, w.email)
	if err != nil {
		w.log.Warn("notification catch-up failed",
			zap.String("recipient", w.email), zap.Error(err))
	}
	for _, n := range unread {
		select {
		case events <- n:
		case <-ctx.Done():
			return
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"operationType":          "insert",
			"fullDocument.recipient": w.email,
		}}},
	}

	for ctx.Err() == nil {
		stream, err := w.db.Collection("notifications").Watch(ctx, pipeline,
			options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			w.log.Warn("notification stream open failed",
				zap.String("recipient", w.email), zap.Error(err))
			sleepCtx(ctx, retryBackoff)
			continue
		}

		for stream.Next(ctx) {
			var ev struct {
				FullDocument models.Notification `bson:"fullDocument"`
			}
			if err := stream.Decode(&ev); err != nil {
				w.log.Warn("notification stream decode failed",
					zap.String("recipient", w.email), zap.Error(err))
				continue
			}
			if ev.FullDocument.ID == "" {
				continue
			}
			select {
			case events <- ev.FullDocument:
			case <-ctx.Done():
				_ = stream.Close(context.Background())
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			w.log.Warn("notification stream error",
				zap.String("recipient", w.email), zap.Error(err))
		}
		_ = stream.Close(context.Background())
		sleepCtx(ctx, retryBackoff)
	}
}

func (w *NotificationWatcher) consume(_ context.Context, events <-chan models.Notification) {
	// Each delivery gets its own detached context so items already buffered
	// when Stop is called still complete.
	for n := range events {
		if n.Read {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		w.deliver(ctx, n)
		cancel()
	}
}

func (w *NotificationWatcher) deliver(ctx context.Context, n models.Notification) {
	// Blocked organizer: swallow silently, but clear the unread flag so the
	// notification never resurfaces.
	if n.FromOrganizer != "" {
		blocked, err := w.users.IsOrganizerBlocked(ctx, w.email, n.FromOrganizer)
		if err != nil {
			w.log.Warn("blocked-organizer check failed",
				zap.String("recipient", w.email), zap.Error(err))
			return
		}
		if blocked {
			if err := w.notifs.MarkRead(ctx, n.ID); err != nil {
				w.log.Warn("mark read failed",
					zap.String("notification_id", n.ID), zap.Error(err))
			}
			return
		}
	}

	// Live opt-out check: a recipient who disabled notifications mid-stream
	// keeps the unread backlog for when they re-enable.
	u, err := w.users.GetByEmail(ctx, w.email)
	if err != nil {
		w.log.Warn("recipient lookup failed",
			zap.String("recipient", w.email), zap.Error(err))
		return
	}
	if u != nil && !u.WantsNotifications() {
		return
	}

	if w.display != nil {
		w.display(n)
	}
	if err := w.notifs.MarkRead(ctx, n.ID); err != nil {
		w.log.Warn("mark read failed",
			zap.String("notification_id", n.ID), zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
