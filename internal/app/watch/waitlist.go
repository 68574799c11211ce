package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// waitlistChange is one decoded change-stream event from the event_waitlist
// collection. Delete events carry only the document key, so the watcher keeps
// a local id-to-entry map seeded from inserts and the initial snapshot.
type waitlistChange struct {
	op      string
	entry   models.WaitlistEntry
	entryID string
}

// WaitlistWatcher follows one event's presence records and writes
// self-notifications to the organizer: one for each entrant joining, one for
// each leaving. Self-notifications bypass the organizer's opt-out flag so the
// organizer always sees movement on their own event.
type WaitlistWatcher struct {
	eventID   string
	organizer string
	db        *mongo.Database
	events    *eventstore.Store
	notifs    *notifstore.Store
	log       *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// known maps presence-record id to entry, for attributing deletes.
	known   map[string]models.WaitlistEntry
	knownMu sync.Mutex
}

func NewWaitlistWatcher(db *mongo.Database, events *eventstore.Store, notifs *notifstore.Store, eventID, organizerEmail string, log *zap.Logger) *WaitlistWatcher {
	return &WaitlistWatcher{
		eventID:   eventID,
		organizer: normalize.Email(organizerEmail),
		db:        db,
		events:    events,
		notifs:    notifs,
		log:       log,
		known:     make(map[string]models.WaitlistEntry),
	}
}

// Start begins watching. Calling Start while running is a no-op until Stop.
func (w *WaitlistWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)

	changes := make(chan waitlistChange, eventBuffer)

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		defer close(changes)
		w.streamLoop(ctx, changes)
	}()
	go func() {
		defer w.wg.Done()
		w.consume(ctx, changes)
	}()
}

// Stop detaches the stream and waits for in-flight notifications. Idempotent.
func (w *WaitlistWatcher) Stop() {
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

func (w *WaitlistWatcher) streamLoop(ctx context.Context, changes chan<- waitlistChange) {
	// Seed the id map from the current waitlist so deletes of pre-existing
	// entries can still be attributed.
	entries, err := w.events.WaitlistEntries(ctx, w.eventID)
	if err != nil {
		w.log.Warn("waitlist snapshot failed",
			zap.String("event_id", w.eventID), zap.Error(err))
	}
	w.knownMu.Lock()
	for _, e := range entries {
		w.known[e.ID] = e
	}
	w.knownMu.Unlock()

	// Deletes have no fullDocument, so the event filter for them happens in
	// the consumer via the id map.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{
				"operationType":         "insert",
				"fullDocument.event_id": w.eventID,
			},
			bson.M{"operationType": "delete"},
		}}}},
	}

	for ctx.Err() == nil {
		stream, err := w.db.Collection("event_waitlist").Watch(ctx, pipeline,
			options.ChangeStream().SetFullDocument(options.UpdateLookup))
		if err != nil {
			w.log.Warn("waitlist stream open failed",
				zap.String("event_id", w.eventID), zap.Error(err))
			sleepCtx(ctx, retryBackoff)
			continue
		}

		for stream.Next(ctx) {
			var ev struct {
				OperationType string               `bson:"operationType"`
				FullDocument  models.WaitlistEntry `bson:"fullDocument"`
				DocumentKey   struct {
					ID string `bson:"_id"`
				} `bson:"documentKey"`
			}
			if err := stream.Decode(&ev); err != nil {
				w.log.Warn("waitlist stream decode failed",
					zap.String("event_id", w.eventID), zap.Error(err))
				continue
			}
			select {
			case changes <- waitlistChange{
				op:      ev.OperationType,
				entry:   ev.FullDocument,
				entryID: ev.DocumentKey.ID,
			}:
			case <-ctx.Done():
				_ = stream.Close(context.Background())
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			w.log.Warn("waitlist stream error",
				zap.String("event_id", w.eventID), zap.Error(err))
		}
		_ = stream.Close(context.Background())
		sleepCtx(ctx, retryBackoff)
	}
}

func (w *WaitlistWatcher) consume(_ context.Context, changes <-chan waitlistChange) {
	// Detached per-item contexts let buffered changes finish after Stop.
	for c := range changes {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		switch c.op {
		case "insert":
			w.knownMu.Lock()
			w.known[c.entry.ID] = c.entry
			w.knownMu.Unlock()
			w.notifyJoin(ctx, c.entry)
		case "delete":
			w.knownMu.Lock()
			entry, ok := w.known[c.entryID]
			delete(w.known, c.entryID)
			w.knownMu.Unlock()
			if ok {
				w.notifyLeave(ctx, entry)
			}
			// Unknown ids belong to another event's presence records.
		}
		cancel()
	}
}

func (w *WaitlistWatcher) notifyJoin(ctx context.Context, entry models.WaitlistEntry) {
	name := entry.EntrantName
	if name == "" {
		name = entry.EntrantEmail
	}
	w.sendSelf(ctx, "New entrant",
		fmt.Sprintf("%s joined the waiting list for your event", name))
}

func (w *WaitlistWatcher) notifyLeave(ctx context.Context, entry models.WaitlistEntry) {
	name := entry.EntrantName
	if name == "" {
		name = entry.EntrantEmail
	}
	w.sendSelf(ctx, "Entrant left",
		fmt.Sprintf("%s left the waiting list for your event", name))
}

func (w *WaitlistWatcher) sendSelf(ctx context.Context, title, message string) {
	err := w.notifs.SendDirect(ctx, w.organizer, models.Notification{
		Title:   title,
		Message: message,
		EventID: w.eventID,
	})
	if err != nil {
		w.log.Warn("organizer self-notification failed",
			zap.String("event_id", w.eventID),
			zap.String("organizer", w.organizer),
			zap.Error(err))
	}
}
