package notifstore

import (
	"context"
	"time"

	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/app/system/sanitize"
	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Store delivers notifications. Every send attempt is recorded in the
// notification log; whether a notification document is also written depends
// on the recipient's opt-out flag, read fresh on each send.
type Store struct {
	c     *mongo.Collection
	users userstore.Directory
	logs  *notiflogs.Store
	log   *zap.Logger
}

func New(db *mongo.Database, users userstore.Directory, logs *notiflogs.Store, log *zap.Logger) *Store {
	return &Store{
		c:     db.Collection("notifications"),
		users: users,
		logs:  logs,
		log:   log,
	}
}

// SendToUser delivers one notification to one recipient.
//
// Opted-out recipient: exactly one OPTED_OUT log entry, no notification
// document, nil error. Enabled recipient: notification document first, then
// one SENT log entry. A failed document write produces a FAILED log entry and
// returns the error; no SENT entry is written.
func (s *Store) SendToUser(ctx context.Context, email string, n models.Notification) error {
	n.Recipient = normalize.Email(email)
	n.Title = sanitize.Text(n.Title)
	n.Message = sanitize.Text(n.Message)

	u, err := s.users.GetByEmail(ctx, n.Recipient)
	if err != nil {
		return err
	}
	if u != nil && !u.WantsNotifications() {
		s.appendLog(ctx, n, models.SendStatusOptedOut)
		return nil
	}

	if err := s.insert(ctx, n); err != nil {
		s.appendLog(ctx, n, models.SendStatusFailed)
		s.log.Warn("notification write failed",
			zap.String("recipient", n.Recipient),
			zap.String("title", n.Title),
			zap.Error(err))
		return err
	}
	s.appendLog(ctx, n, models.SendStatusSent)
	return nil
}

// SendDirect writes a notification document without consulting the opt-out
// flag. Watcher self-notifications use this path.
func (s *Store) SendDirect(ctx context.Context, email string, n models.Notification) error {
	n.Recipient = normalize.Email(email)
	n.Title = sanitize.Text(n.Title)
	n.Message = sanitize.Text(n.Message)
	return s.insert(ctx, n)
}

func (s *Store) insert(ctx context.Context, n models.Notification) error {
	n.ID = uuid.NewString()
	n.Read = false
	n.CreatedAt = time.Now().UTC()
	_, err := s.c.InsertOne(ctx, n)
	return err
}

// appendLog records a send attempt. Log failures are logged and swallowed so
// delivery outcome is decided by the notification write alone.
func (s *Store) appendLog(ctx context.Context, n models.Notification, status string) {
	entry := models.NotificationLog{
		Recipient:     n.Recipient,
		Title:         n.Title,
		Message:       n.Message,
		EventID:       n.EventID,
		EventName:     n.EventName,
		FromOrganizer: n.FromOrganizer,
		GroupType:     n.GroupType,
		Status:        status,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.log.Warn("notification log append failed",
			zap.String("recipient", n.Recipient),
			zap.String("status", status),
			zap.Error(err))
	}
}

// SendResult is one recipient's outcome from a fan-out send.
type SendResult struct {
	Email string
	Err   error
}

// SendToUsers delivers an independent copy of the notification to each
// recipient concurrently and waits for all of them. One recipient's failure
// never cancels the others; each result carries its own error. Results are
// in input order.
func (s *Store) SendToUsers(ctx context.Context, emails []string, n models.Notification) []SendResult {
	results := make([]SendResult, len(emails))

	var g errgroup.Group
	for i, email := range emails {
		i, email := i, email
		g.Go(func() error {
			err := s.SendToUser(ctx, email, n)
			results[i] = SendResult{Email: normalize.Email(email), Err: err}
			// Errors stay in the result slot so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SendToWaitlist notifies every entrant on the event's waitlist.
func (s *Store) SendToWaitlist(ctx context.Context, event *models.Event, title, message string) []SendResult {
	return s.sendToGroup(ctx, event, event.Waitlist, models.GroupWaitlist, title, message)
}

// SendToInvited notifies every entrant on the event's invited list.
func (s *Store) SendToInvited(ctx context.Context, event *models.Event, title, message string) []SendResult {
	return s.sendToGroup(ctx, event, event.Invited, models.GroupInvited, title, message)
}

// SendToCancelled notifies every entrant on the event's declined list.
func (s *Store) SendToCancelled(ctx context.Context, event *models.Event, title, message string) []SendResult {
	return s.sendToGroup(ctx, event, event.Declined, models.GroupCancelled, title, message)
}

func (s *Store) sendToGroup(ctx context.Context, event *models.Event, group []models.Entrant, groupType, title, message string) []SendResult {
	emails := make([]string, 0, len(group))
	for _, en := range group {
		emails = append(emails, en.Email)
	}
	n := models.Notification{
		Title:         title,
		Message:       message,
		EventID:       event.ID,
		EventName:     event.Name,
		FromOrganizer: event.OrganizerEmail,
		GroupType:     groupType,
	}
	return s.SendToUsers(ctx, emails, n)
}

// UnreadForUser lists the recipient's unread notifications, newest first.
func (s *Store) UnreadForUser(ctx context.Context, email string) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{
		"recipient": normalize.Email(email),
		"read":      false,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var notifications []models.Notification
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// GetByID returns (nil, nil) when no notification has the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MarkRead flags a notification as read.
func (s *Store) MarkRead(ctx context.Context, id string) error {
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	return err
}
