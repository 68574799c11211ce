package invitestore

import (
	"context"
	"errors"
	"time"

	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/app/system/sanitize"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errBadStatus = errors.New(`status must be "pending"|"accepted"|"declined"|"expired"`)

// Store persists lottery invitations.
type Store struct {
	c    *mongo.Collection
	plan *pendingQueryPlan
	log  *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		c:    db.Collection("invites"),
		plan: newPendingQueryPlan(),
		log:  log,
	}
}

// Create inserts an invite with a server-side creation time, assigning a
// fresh id when the caller did not supply one. Only the fixed invite fields
// are persisted; anything else on the struct is dropped by the bson mapping.
func (s *Store) Create(ctx context.Context, inv models.Invite) (models.Invite, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.RecipientEmail = normalize.Email(inv.RecipientEmail)
	inv.OrganizerEmail = normalize.Email(inv.OrganizerEmail)
	inv.Message = sanitize.Text(inv.Message)
	if inv.Status == "" {
		inv.Status = models.InviteStatusPending
	}
	inv.CreatedAt = time.Now().UTC()

	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		return models.Invite{}, err
	}
	return inv, nil
}

// CreateResult is one invite's outcome from a CreateMany fan-out.
type CreateResult struct {
	Invite models.Invite
	Err    error
}

// CreateMany inserts invites concurrently and waits for all of them. One
// failed insert never cancels its siblings; each result carries its own
// error. Results are in input order.
func (s *Store) CreateMany(ctx context.Context, invs []models.Invite) []CreateResult {
	results := make([]CreateResult, len(invs))

	var g errgroup.Group
	for i, inv := range invs {
		i, inv := i, inv
		g.Go(func() error {
			created, err := s.Create(ctx, inv)
			results[i] = CreateResult{Invite: created, Err: err}
			if err != nil {
				s.log.Warn("invite create failed in fan-out",
					zap.String("recipient", inv.RecipientEmail),
					zap.String("event_id", inv.EventID),
					zap.Error(err))
			}
			// Errors stay in the result slot so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// PendingForUser lists the recipient's live pending invites, newest first.
// Overdue invites are excluded from the result and flagged expired in the
// background; the caller never waits on that write.
func (s *Store) PendingForUser(ctx context.Context, email string) ([]models.Invite, error) {
	email = normalize.Email(email)
	filter := bson.M{"recipient_email": email, "status": models.InviteStatusPending}

	invites, err := s.plan.run(ctx, s.c, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	live := invites[:0]
	var overdue []string
	for _, inv := range invites {
		if inv.Expired(now) {
			overdue = append(overdue, inv.ID)
			continue
		}
		live = append(live, inv)
	}

	if len(overdue) > 0 {
		go s.flagExpired(overdue)
	}
	return live, nil
}

// flagExpired marks overdue invites expired on a detached context. Failures
// are logged and dropped; the sweep job will catch anything missed.
func (s *Store) flagExpired(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "status": models.InviteStatusPending},
		bson.M{"$set": bson.M{"status": models.InviteStatusExpired}})
	if err != nil {
		s.log.Warn("failed to flag expired invites", zap.Int("count", len(ids)), zap.Error(err))
	}
}

// GetByID returns (nil, nil) when no invite has the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Invite, error) {
	var inv models.Invite
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetByEventAndRecipient returns the first pending invite for the pair, or
// (nil, nil) when none exists.
func (s *Store) GetByEventAndRecipient(ctx context.Context, eventID, email string) (*models.Invite, error) {
	var inv models.Invite
	err := s.c.FindOne(ctx, bson.M{
		"event_id":        eventID,
		"recipient_email": normalize.Email(email),
		"status":          models.InviteStatusPending,
	}).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateStatus sets the invite's status. Updating an absent invite is not an
// error; the document count is returned so callers can tell.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (int64, error) {
	status = normalize.InviteStatus(status)
	switch status {
	case models.InviteStatusPending, models.InviteStatusAccepted,
		models.InviteStatusDeclined, models.InviteStatusExpired:
		// ok
	default:
		return 0, errBadStatus
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes an invite by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// DeleteByEventAndRecipient looks up the pending invite for the pair and
// deletes it. Deleting when none exists is not an error.
func (s *Store) DeleteByEventAndRecipient(ctx context.Context, eventID, email string) error {
	inv, err := s.GetByEventAndRecipient(ctx, eventID, email)
	if err != nil {
		return err
	}
	if inv == nil {
		return nil
	}
	return s.Delete(ctx, inv.ID)
}

// CountPendingForUser counts invites whose expiration time is still in the
// future, regardless of the stored status field. The expiration time is the
// authority here because status may lag behind the sweep.
func (s *Store) CountPendingForUser(ctx context.Context, email string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"recipient_email": normalize.Email(email),
		"expiration_time": bson.M{"$gt": time.Now().UnixMilli()},
	})
}

// ExpireOverdue flips every pending invite whose expiration time has passed
// to expired. Used by the periodic sweep job.
func (s *Store) ExpireOverdue(ctx context.Context) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"status":          models.InviteStatusPending,
			"expiration_time": bson.M{"$lte": time.Now().UnixMilli()},
		},
		bson.M{"$set": bson.M{"status": models.InviteStatusExpired}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
