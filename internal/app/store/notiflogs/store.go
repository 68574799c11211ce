// internal/app/store/notiflogs/store.go
package notiflogs

import (
	"context"
	"time"

	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages the append-only notification audit log. Entries are written
// for every send attempt, including suppressed ones, and are never mutated.
type Store struct {
	c *mongo.Collection
}

// New creates a new notification log Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notification_logs")}
}

// Append records one send attempt.
func (s *Store) Append(ctx context.Context, entry models.NotificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Recipient = normalize.Email(entry.Recipient)
	_, err := s.c.InsertOne(ctx, entry)
	return err
}

// List retrieves the most recent log entries, latest first.
func (s *Store) List(ctx context.Context, limit int64) ([]models.NotificationLog, error) {
	return s.query(ctx, bson.M{}, limit)
}

// ListForRecipient retrieves a recipient's recent log entries, latest first.
func (s *Store) ListForRecipient(ctx context.Context, email string, limit int64) ([]models.NotificationLog, error) {
	return s.query(ctx, bson.M{"recipient": normalize.Email(email)}, limit)
}

// CountByStatus returns the number of entries with the given delivery status.
func (s *Store) CountByStatus(ctx context.Context, status string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"status": status})
}

func (s *Store) query(ctx context.Context, filter bson.M, limit int64) ([]models.NotificationLog, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []models.NotificationLog
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
