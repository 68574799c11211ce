// internal/domain/models/invite.go
package models

import (
	"fmt"
	"time"
)

// Invite statuses. Pending may transition to any of the other three; expired
// is terminal and may be applied lazily when an overdue invite is read.
const (
	InviteStatusPending  = "pending"
	InviteStatusAccepted = "accepted"
	InviteStatusDeclined = "declined"
	InviteStatusExpired  = "expired"
)

// Invite is a document in the invites collection, created when a lottery draw
// selects an entrant from an event's waitlist.
type Invite struct {
	ID             string `bson:"_id,omitempty" json:"invite_id"`
	EventID        string `bson:"event_id" json:"event_id"`
	RecipientEmail string `bson:"recipient_email" json:"recipient_email"`
	EventName      string `bson:"event_name" json:"event_name"`
	OrganizerEmail string `bson:"organizer_email" json:"organizer_email"`
	Status         string `bson:"status" json:"status"`

	// ExpirationTime is epoch milliseconds; CountPendingForUser trusts it over
	// the stored status field.
	ExpirationTime int64  `bson:"expiration_time" json:"expiration_time"`
	Message        string `bson:"message,omitempty" json:"message,omitempty"`

	// CreatedAt is stamped server-side on insert. It can be the zero value on
	// documents written before the field existed; readers sort those last.
	CreatedAt time.Time `bson:"created_at,omitempty" json:"created_at,omitempty"`
}

// NewInvite builds a pending invite with the stock selection message.
// The id is assigned by the store on insert.
func NewInvite(eventID, recipientEmail, eventName, organizerEmail string, expirationTime int64) Invite {
	return Invite{
		EventID:        eventID,
		RecipientEmail: recipientEmail,
		EventName:      eventName,
		OrganizerEmail: organizerEmail,
		Status:         InviteStatusPending,
		ExpirationTime: expirationTime,
		Message: fmt.Sprintf("Congratulations! You have been selected from the waitlist for %s. "+
			"Please accept or decline this invitation before it expires.", eventName),
	}
}

// Expired reports whether the invite's expiration time has passed at now.
func (i *Invite) Expired(now time.Time) bool {
	return now.UnixMilli() > i.ExpirationTime
}
