// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureEvents(ctx, db); err != nil {
		problems = append(problems, "events: "+err.Error())
	}
	if err := ensureEventWaitlist(ctx, db); err != nil {
		problems = append(problems, "event_waitlist: "+err.Error())
	}
	if err := ensureInvites(ctx, db); err != nil {
		problems = append(problems, "invites: "+err.Error())
	}
	if err := ensureNotifications(ctx, db); err != nil {
		problems = append(problems, "notifications: "+err.Error())
	}
	if err := ensureNotificationLogs(ctx, db); err != nil {
		problems = append(problems, "notification_logs: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := a != nil && *a
	bv := b != nil && *b
	return av == bv
}

func loadExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	existing := map[string]existingIndex{} // sig -> index
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing, nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()

		existing, err := loadExisting(ctx, coll)
		if err != nil {
			// Listing can fail on a brand-new database; fall through to create.
			existing = map[string]existingIndex{}
		}

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}
			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Display-name lookups (GetByName) and admin listings sorted by name.
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_nameci__id"),
		},
		// Role-filtered listings (admin vs non-admin).
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_users_role_nameci"),
		},
	})
}

func ensureEvents(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("events")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Organizer's own events.
		{
			Keys:    bson.D{{Key: "organizer_email", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_events_organizer_created"),
		},
		// Keyword search is array membership on search_keywords (multikey).
		{
			Keys:    bson.D{{Key: "search_keywords", Value: 1}},
			Options: options.Index().SetName("idx_events_keywords"),
		},
		// Entrant membership queries walk the embedded lists (multikey).
		{
			Keys:    bson.D{{Key: "waitlist.email", Value: 1}},
			Options: options.Index().SetName("idx_events_waitlist_email"),
		},
		{
			Keys:    bson.D{{Key: "invited.email", Value: 1}},
			Options: options.Index().SetName("idx_events_invited_email"),
		},
		{
			Keys:    bson.D{{Key: "declined.email", Value: 1}},
			Options: options.Index().SetName("idx_events_declined_email"),
		},
	})
}

func ensureEventWaitlist(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("event_waitlist")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Exactly one presence record per (event, entrant).
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "entrant_email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_waitlist_event_entrant"),
		},
		{
			Keys:    bson.D{{Key: "entrant_email", Value: 1}},
			Options: options.Index().SetName("idx_waitlist_entrant"),
		},
	})
}

func ensureInvites(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("invites")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Pending-invites listing: recipient + status, newest first. This is
		// the index the primary invite query plan depends on.
		{
			Keys: bson.D{
				{Key: "recipient_email", Value: 1},
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_invites_recipient_status_created"),
		},
		// Event + recipient lookups (response and cancel paths).
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "recipient_email", Value: 1}},
			Options: options.Index().SetName("idx_invites_event_recipient"),
		},
		// Expiry sweep scans by status and expiration time.
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "expiration_time", Value: 1}},
			Options: options.Index().SetName("idx_invites_status_expiration"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notifications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Per-recipient unread scan, newest first. The recipient watcher and
		// the unread listing both use this.
		{
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "read", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_notifications_recipient_read_created"),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetName("idx_notifications_event"),
		},
	})
}

func ensureNotificationLogs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notification_logs")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Admin log listing, latest-first.
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_notiflogs_created"),
		},
		{
			Keys:    bson.D{{Key: "recipient", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_notiflogs_recipient_created"),
		},
	})
}
