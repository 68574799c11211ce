// internal/domain/models/notification.go
package models

import "time"

// Group labels attached to bulk notifications so recipients and admins can see
// which entrant list a message targeted.
const (
	GroupWaitlist  = "Waiting List"
	GroupInvited   = "Chosen Entrants"
	GroupCancelled = "Cancelled Entrants"
)

// Notification delivery statuses recorded in the audit log.
const (
	SendStatusSent     = "SENT"
	SendStatusOptedOut = "OPTED_OUT"
	SendStatusFailed   = "FAILED"
)

// Notification is one recipient's copy of a message. Fan-out writes an
// independent document per recipient so each can be marked read on its own.
type Notification struct {
	ID            string `bson:"_id,omitempty" json:"notification_id"`
	Recipient     string `bson:"recipient" json:"recipient"`
	Title         string `bson:"title" json:"title"`
	Message       string `bson:"message" json:"message"`
	EventID       string `bson:"event_id,omitempty" json:"event_id,omitempty"`
	EventName     string `bson:"event_name,omitempty" json:"event_name,omitempty"`
	FromOrganizer string `bson:"from_organizer,omitempty" json:"from_organizer,omitempty"`
	GroupType     string `bson:"group_type,omitempty" json:"group_type,omitempty"`

	Read      bool      `bson:"read" json:"read"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// NotificationLog is an append-only audit record of a send attempt. It is
// written for every attempt, including opted-out recipients, and never mutated.
type NotificationLog struct {
	ID            string    `bson:"_id,omitempty" json:"id"`
	Recipient     string    `bson:"recipient" json:"recipient"`
	Title         string    `bson:"title" json:"title"`
	Message       string    `bson:"message" json:"message"`
	EventID       string    `bson:"event_id,omitempty" json:"event_id,omitempty"`
	EventName     string    `bson:"event_name,omitempty" json:"event_name,omitempty"`
	FromOrganizer string    `bson:"from_organizer,omitempty" json:"from_organizer,omitempty"`
	GroupType     string    `bson:"group_type,omitempty" json:"group_type,omitempty"`
	Status        string    `bson:"status" json:"status"` // SENT | OPTED_OUT | FAILED
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
