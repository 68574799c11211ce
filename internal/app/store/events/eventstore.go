package eventstore

import (
	"context"
	"errors"
	"time"

	"github.com/atlasevents/backend/internal/app/system/normalize"
	"github.com/atlasevents/backend/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrAlreadyOnWaitlist is returned when an entrant joins a waitlist they
	// are already on.
	ErrAlreadyOnWaitlist = errors.New("entrant is already on the waitlist")
	errEmptyName         = errors.New("event name is required")
)

// Store persists events and their waitlist presence records. The embedded
// entrant lists on the event document are the source of truth for membership;
// the event_waitlist collection mirrors the waitlist so it can be watched
// with a change stream.
type Store struct {
	c        *mongo.Collection
	waitlist *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:        db.Collection("events"),
		waitlist: db.Collection("event_waitlist"),
	}
}

// Add assigns a fresh id, derives the search keywords, and inserts the event.
// Beyond requiring a name, event content is stored as given.
func (s *Store) Add(ctx context.Context, e models.Event) (models.Event, error) {
	e.Name = normalize.Name(e.Name)
	if e.Name == "" {
		return models.Event{}, errEmptyName
	}
	e.ID = uuid.NewString()
	e.OrganizerEmail = normalize.Email(e.OrganizerEmail)
	e.SearchKeywords = BuildSearchKeywords(e.Name, e.Tags)

	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Event{}, err
	}
	return e, nil
}

// GetByID returns (nil, nil) when no event has the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var e models.Event
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetAll returns every event, newest first.
func (s *Store) GetAll(ctx context.Context) ([]models.Event, error) {
	return s.find(ctx, bson.M{})
}

// GetAvailable returns events that still have open slots.
func (s *Store) GetAvailable(ctx context.Context) ([]models.Event, error) {
	return s.find(ctx, bson.M{"slots": bson.M{"$gt": 0}})
}

// GetByOrganizer returns the events owned by the given organizer.
func (s *Store) GetByOrganizer(ctx context.Context, organizerEmail string) ([]models.Event, error) {
	return s.find(ctx, bson.M{"organizer_email": normalize.Email(organizerEmail)})
}

// GetByEntrant returns events where the entrant appears on any of the
// waitlist, invited, or declined lists.
func (s *Store) GetByEntrant(ctx context.Context, entrantEmail string) ([]models.Event, error) {
	email := normalize.Email(entrantEmail)
	return s.find(ctx, bson.M{"$or": bson.A{
		bson.M{"waitlist.email": email},
		bson.M{"invited.email": email},
		bson.M{"declined.email": email},
	}})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []models.Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Update replaces the stored event document. The id and creation time are
// preserved; search keywords are rederived from the new name and tags.
func (s *Store) Update(ctx context.Context, e models.Event) error {
	e.Name = normalize.Name(e.Name)
	if e.Name == "" {
		return errEmptyName
	}
	e.OrganizerEmail = normalize.Email(e.OrganizerEmail)
	e.SearchKeywords = BuildSearchKeywords(e.Name, e.Tags)
	e.UpdatedAt = time.Now().UTC()

	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": e.ID}, e)
	return err
}

// Delete removes the event and its waitlist presence records.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.c.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}
	_, err := s.waitlist.DeleteMany(ctx, bson.M{"event_id": id})
	return err
}

// JoinWaitlist adds the entrant to the event's embedded waitlist and writes
// the matching presence record. Joining twice returns ErrAlreadyOnWaitlist.
func (s *Store) JoinWaitlist(ctx context.Context, eventID string, entrant models.Entrant) error {
	entrant.Email = normalize.Email(entrant.Email)
	entrant.Name = normalize.Name(entrant.Name)

	entry := models.WaitlistEntry{
		ID:           uuid.NewString(),
		EventID:      eventID,
		EntrantEmail: entrant.Email,
		EntrantName:  entrant.Name,
		JoinedAt:     time.Now().UTC(),
	}
	// The unique (event, entrant) index makes the presence insert the
	// idempotency gate; the embedded list is only touched after it succeeds.
	if _, err := s.waitlist.InsertOne(ctx, entry); err != nil {
		if wafflemongo.IsDup(err) {
			return ErrAlreadyOnWaitlist
		}
		return err
	}

	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{
			"$addToSet": bson.M{"waitlist": entrant},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

// LeaveWaitlist removes the entrant from the embedded waitlist and deletes
// the presence record. Leaving a waitlist you are not on is not an error.
func (s *Store) LeaveWaitlist(ctx context.Context, eventID, entrantEmail string) error {
	email := normalize.Email(entrantEmail)

	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{
			"$pull": bson.M{"waitlist": bson.M{"email": email}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}

	_, err = s.waitlist.DeleteMany(ctx, bson.M{"event_id": eventID, "entrant_email": email})
	return err
}

// WaitlistEntries returns the presence records for an event, oldest first.
func (s *Store) WaitlistEntries(ctx context.Context, eventID string) ([]models.WaitlistEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	cur, err := s.waitlist.Find(ctx, bson.M{"event_id": eventID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []models.WaitlistEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MoveToInvited pulls the given entrants off the waitlist and adds them to the
// invited list, keeping the presence records in sync. Used by lottery draws.
func (s *Store) MoveToInvited(ctx context.Context, eventID string, winners []models.Entrant) error {
	if len(winners) == 0 {
		return nil
	}
	emails := make([]string, 0, len(winners))
	for i := range winners {
		winners[i].Email = normalize.Email(winners[i].Email)
		emails = append(emails, winners[i].Email)
	}

	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{
			"$pull":     bson.M{"waitlist": bson.M{"email": bson.M{"$in": emails}}},
			"$addToSet": bson.M{"invited": bson.M{"$each": winners}},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}

	_, err = s.waitlist.DeleteMany(ctx, bson.M{"event_id": eventID, "entrant_email": bson.M{"$in": emails}})
	return err
}

// MoveToDeclined shifts an entrant from the invited list to the declined list.
func (s *Store) MoveToDeclined(ctx context.Context, eventID string, entrant models.Entrant) error {
	entrant.Email = normalize.Email(entrant.Email)

	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{
			"$pull":     bson.M{"invited": bson.M{"email": entrant.Email}},
			"$addToSet": bson.M{"declined": entrant},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		})
	return err
}

// SearchByKeyword finds events whose search keywords contain the folded
// query, merged with name-prefix matches. Queries under two characters
// return no results.
func (s *Store) SearchByKeyword(ctx context.Context, q string) ([]models.Event, error) {
	q = normalize.QueryParam(q)
	if len([]rune(q)) < 2 {
		return nil, nil
	}
	folded := foldKeyword(q)

	byKeyword, err := s.find(ctx, bson.M{"search_keywords": folded})
	if err != nil {
		return nil, err
	}
	byName, err := s.SearchByName(ctx, q)
	if err != nil {
		return nil, err
	}
	return mergeEvents(byKeyword, byName), nil
}

// SearchByName finds events whose folded name starts with the folded query.
// Queries under two characters return no results.
func (s *Store) SearchByName(ctx context.Context, prefix string) ([]models.Event, error) {
	prefix = normalize.QueryParam(prefix)
	if len([]rune(prefix)) < 2 {
		return nil, nil
	}
	// Prefix match against the keyword array: name prefixes are materialized
	// into search_keywords on write, so this stays an indexed lookup.
	return s.find(ctx, bson.M{"search_keywords": foldKeyword(prefix)})
}

// mergeEvents concatenates result sets, dropping duplicates while keeping the
// first occurrence's position.
func mergeEvents(lists ...[]models.Event) []models.Event {
	seen := make(map[string]bool)
	var merged []models.Event
	for _, list := range lists {
		for _, e := range list {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}
	return merged
}
