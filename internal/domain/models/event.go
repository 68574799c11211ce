// internal/domain/models/event.go
package models

import "time"

// Entrant is the embedded form of a user inside an event's entrant lists.
type Entrant struct {
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
}

// Event is a document in the events collection. The id is assigned by the
// store on insert; the three entrant lists are embedded in the document, while
// waitlist membership is additionally mirrored into the event_waitlist
// collection so it can be watched with a change stream.
type Event struct {
	ID          string `bson:"_id,omitempty" json:"id"`
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Location    string `bson:"location,omitempty" json:"location,omitempty"`
	Slots       int    `bson:"slots" json:"slots"`

	OrganizerEmail string `bson:"organizer_email" json:"organizer_email"`

	Waitlist []Entrant `bson:"waitlist,omitempty" json:"waitlist,omitempty"`
	Invited  []Entrant `bson:"invited,omitempty" json:"invited,omitempty"`
	Declined []Entrant `bson:"declined,omitempty" json:"declined,omitempty"`

	// SearchKeywords holds lowercased name/tag prefixes, recomputed on every
	// write, so keyword search is a plain array-membership query.
	SearchKeywords []string `bson:"search_keywords,omitempty" json:"-"`
	Tags           []string `bson:"tags,omitempty" json:"tags,omitempty"`

	ImageURL  string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// OnWaitlist reports whether the email appears in the embedded waitlist.
func (e *Event) OnWaitlist(email string) bool { return containsEntrant(e.Waitlist, email) }

// IsInvited reports whether the email appears in the invited list.
func (e *Event) IsInvited(email string) bool { return containsEntrant(e.Invited, email) }

// HasDeclined reports whether the email appears in the declined list.
func (e *Event) HasDeclined(email string) bool { return containsEntrant(e.Declined, email) }

func containsEntrant(list []Entrant, email string) bool {
	for _, en := range list {
		if en.Email == email {
			return true
		}
	}
	return false
}

// WaitlistEntry is a presence record in the event_waitlist collection. One
// document per (event, entrant); inserts and deletes are the change events the
// organizer watcher reacts to.
type WaitlistEntry struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	EventID      string    `bson:"event_id" json:"event_id"`
	EntrantEmail string    `bson:"entrant_email" json:"entrant_email"`
	EntrantName  string    `bson:"entrant_name,omitempty" json:"entrant_name,omitempty"`
	JoinedAt     time.Time `bson:"joined_at" json:"joined_at"`
}
