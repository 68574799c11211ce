package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/atlasevents/backend/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	enabled := true
	user := models.User{
		Email:                email,
		Name:                 name,
		NameCI:               text.Fold(name),
		Role:                 role,
		NotificationsEnabled: &enabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateOrganizer creates a test organizer user.
func (f *Fixtures) CreateOrganizer(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleOrganizer)
}

// CreateEntrant creates a test entrant user.
func (f *Fixtures) CreateEntrant(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleEntrant)
}

// CreateAdmin creates a test admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleAdmin)
}

// CreateOptedOutEntrant creates an entrant with notifications disabled.
func (f *Fixtures) CreateOptedOutEntrant(ctx context.Context, name, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	disabled := false
	user := models.User{
		Email:                email,
		Name:                 name,
		NameCI:               text.Fold(name),
		Role:                 models.RoleEntrant,
		NotificationsEnabled: &disabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create opted-out test entrant: %v", err)
	}

	return user
}

// CreateEvent creates a test event owned by the given organizer.
func (f *Fixtures) CreateEvent(ctx context.Context, name, organizerEmail string, slots int) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	event := models.Event{
		ID:             uuid.NewString(),
		Name:           name,
		Slots:          slots,
		OrganizerEmail: organizerEmail,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := f.db.Collection("events").InsertOne(ctx, event)
	if err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}

	return event
}

// CreateEventWithWaitlist creates a test event whose waitlist already holds
// the given entrants.
func (f *Fixtures) CreateEventWithWaitlist(ctx context.Context, name, organizerEmail string, slots int, waitlist []models.Entrant) models.Event {
	f.t.Helper()

	now := time.Now().UTC()
	event := models.Event{
		ID:             uuid.NewString(),
		Name:           name,
		Slots:          slots,
		OrganizerEmail: organizerEmail,
		Waitlist:       waitlist,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := f.db.Collection("events").InsertOne(ctx, event)
	if err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}

	return event
}

// CreateInvite creates a pending test invite expiring 24h from now.
func (f *Fixtures) CreateInvite(ctx context.Context, eventID, eventName, organizerEmail, recipientEmail string) models.Invite {
	f.t.Helper()

	inv := models.NewInvite(eventID, recipientEmail, eventName, organizerEmail,
		time.Now().Add(24*time.Hour).UnixMilli())
	inv.ID = uuid.NewString()
	inv.CreatedAt = time.Now().UTC()

	_, err := f.db.Collection("invites").InsertOne(ctx, inv)
	if err != nil {
		f.t.Fatalf("failed to create test invite: %v", err)
	}

	return inv
}

// CreateNotification creates an unread test notification for the recipient.
func (f *Fixtures) CreateNotification(ctx context.Context, recipient, title, message string) models.Notification {
	f.t.Helper()

	n := models.Notification{
		ID:        uuid.NewString(),
		Recipient: recipient,
		Title:     title,
		Message:   message,
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	_, err := f.db.Collection("notifications").InsertOne(ctx, n)
	if err != nil {
		f.t.Fatalf("failed to create test notification: %v", err)
	}

	return n
}
