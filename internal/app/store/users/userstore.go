package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "organizer"|"entrant"|"admin"`)
	errEmptyEmail     = errors.New("email is required")
)

// Directory is the lookup surface shared by the Mongo store and the in-memory
// test double. Absent users come back as (nil, nil) so callers can treat "not
// there yet" as a normal state instead of an error.
type Directory interface {
	Add(ctx context.Context, u models.User) (models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByName(ctx context.Context, name string) (*models.User, error)
	GetOrganizer(ctx context.Context, email string) (*models.User, error)
	GetEntrant(ctx context.Context, email string) (*models.User, error)
	Replace(ctx context.Context, email string, u models.User) (models.User, error)
	Delete(ctx context.Context, email string) error
	List(ctx context.Context, role string) ([]models.User, error)
	SetNotificationsEnabled(ctx context.Context, email string, enabled bool) error
	BlockOrganizer(ctx context.Context, email, organizerEmail string) error
	UnblockOrganizer(ctx context.Context, email, organizerEmail string) error
	IsOrganizerBlocked(ctx context.Context, email, organizerEmail string) (bool, error)
}

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var _ Directory = (*Store)(nil)

// Add inserts a new user after normalizing & validating fields. The email
// becomes the document id, so a second Add with the same email (any casing)
// returns ErrDuplicateEmail.
func (s *Store) Add(ctx context.Context, u models.User) (models.User, error) {
	u, err := prepareNew(u)
	if err != nil {
		return models.User{}, err
	}

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns (nil, nil)
// when no such user exists.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": normalize.Email(email)}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByName returns the first user whose display name matches (case and
// diacritics folded), or (nil, nil) when none matches.
func (s *Store) GetByName(ctx context.Context, name string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"name_ci": text.Fold(normalize.Name(name))}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrganizer loads a user by email, returning (nil, nil) if the user does
// not exist or is not an organizer.
func (s *Store) GetOrganizer(ctx context.Context, email string) (*models.User, error) {
	return s.getByRole(ctx, email, models.RoleOrganizer)
}

// GetEntrant loads a user by email, returning (nil, nil) if the user does
// not exist or is not an entrant.
func (s *Store) GetEntrant(ctx context.Context, email string) (*models.User, error) {
	return s.getByRole(ctx, email, models.RoleEntrant)
}

func (s *Store) getByRole(ctx context.Context, email, role string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": normalize.Email(email), "role": role}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Replace overwrites the user stored under email with u. When u carries a
// different email the new document is inserted first and the old one deleted
// after, so a crash in between leaves both rather than neither. The two-step
// write is not atomic; last write wins.
func (s *Store) Replace(ctx context.Context, email string, u models.User) (models.User, error) {
	oldEmail := normalize.Email(email)

	existing, err := s.GetByEmail(ctx, oldEmail)
	if err != nil {
		return models.User{}, err
	}

	u, err = prepareReplacement(existing, u)
	if err != nil {
		return models.User{}, err
	}

	if u.Email == oldEmail {
		opts := options.Replace().SetUpsert(true)
		if _, err := s.c.ReplaceOne(ctx, bson.M{"_id": oldEmail}, u, opts); err != nil {
			return models.User{}, err
		}
		return u, nil
	}

	// Email change: the id is immutable, so this is insert + delete.
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	if _, err := s.c.DeleteOne(ctx, bson.M{"_id": oldEmail}); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// Delete removes a user by email. Deleting an absent user is not an error.
func (s *Store) Delete(ctx context.Context, email string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": normalize.Email(email)})
	return err
}

// List returns users ordered by folded name. An empty role returns everyone;
// "admin" returns admins only; any other role filters to that role.
func (s *Store) List(ctx context.Context, role string) ([]models.User, error) {
	filter := bson.M{}
	if r := normalize.Role(role); r != "" {
		filter["role"] = r
	}

	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SetNotificationsEnabled flips the opt-out flag. Sends consult the stored
// flag at send time, so this takes effect on the next notification.
func (s *Store) SetNotificationsEnabled(ctx context.Context, email string, enabled bool) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": normalize.Email(email)},
		bson.M{"$set": bson.M{"notifications_enabled": enabled, "updated_at": time.Now().UTC()}})
	return err
}

// BlockOrganizer adds an organizer to the user's muted set.
func (s *Store) BlockOrganizer(ctx context.Context, email, organizerEmail string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": normalize.Email(email)},
		bson.M{
			"$addToSet": bson.M{"blocked_organizers": normalize.Email(organizerEmail)},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

// UnblockOrganizer removes an organizer from the user's muted set.
func (s *Store) UnblockOrganizer(ctx context.Context, email, organizerEmail string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": normalize.Email(email)},
		bson.M{
			"$pull": bson.M{"blocked_organizers": normalize.Email(organizerEmail)},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

// IsOrganizerBlocked reports whether the user has muted the organizer.
// An absent user has blocked no one.
func (s *Store) IsOrganizerBlocked(ctx context.Context, email, organizerEmail string) (bool, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	return u.HasBlocked(normalize.Email(organizerEmail)), nil
}

/* -------------------------------------------------------------------------- */
/* Shared normalization (used by both Store and MemStore)                     */
/* -------------------------------------------------------------------------- */

func prepareNew(u models.User) (models.User, error) {
	u.Email = normalize.Email(u.Email)
	if u.Email == "" {
		return models.User{}, errEmptyEmail
	}
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Role = normalize.Role(u.Role)

	switch u.Role {
	case models.RoleOrganizer, models.RoleEntrant, models.RoleAdmin:
		// ok
	default:
		return models.User{}, errBadRole
	}

	if u.Password != "" {
		hash, err := hashPassword(u.Password)
		if err != nil {
			return models.User{}, err
		}
		u.Password = hash
	}

	if u.NotificationsEnabled == nil {
		enabled := true
		u.NotificationsEnabled = &enabled
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}

func prepareReplacement(existing *models.User, u models.User) (models.User, error) {
	u.Email = normalize.Email(u.Email)
	if u.Email == "" {
		return models.User{}, errEmptyEmail
	}
	u.Name = normalize.Name(u.Name)
	u.NameCI = text.Fold(u.Name)
	u.Role = normalize.Role(u.Role)

	switch u.Role {
	case models.RoleOrganizer, models.RoleEntrant, models.RoleAdmin:
		// ok
	default:
		return models.User{}, errBadRole
	}

	// An empty password keeps the stored hash; a new one is rehashed.
	if u.Password == "" && existing != nil {
		u.Password = existing.Password
	} else if u.Password != "" {
		hash, err := hashPassword(u.Password)
		if err != nil {
			return models.User{}, err
		}
		u.Password = hash
	}

	if u.NotificationsEnabled == nil {
		if existing != nil && existing.NotificationsEnabled != nil {
			u.NotificationsEnabled = existing.NotificationsEnabled
		} else {
			enabled := true
			u.NotificationsEnabled = &enabled
		}
	}
	if u.BlockedOrganizers == nil && existing != nil {
		u.BlockedOrganizers = existing.BlockedOrganizers
	}

	now := time.Now().UTC()
	if existing != nil {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return u, nil
}

// hashPassword hashes a password using bcrypt with a cost of 12.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
