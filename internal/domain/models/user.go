// internal/domain/models/user.go
package models

import "time"

// User roles. A single User document carries a role discriminator instead of
// per-role subtypes; organizer- and entrant-specific behavior branches on Role.
const (
	RoleOrganizer = "organizer"
	RoleEntrant   = "entrant"
	RoleAdmin     = "admin"
)

// User represents an account in the users collection. The document id is the
// lowercased email address, which is the primary key throughout the system.
type User struct {
	Email       string `bson:"_id" json:"email"`
	Name        string `bson:"name" json:"name"`
	NameCI      string `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Password    string `bson:"password" json:"-"`
	PhoneNumber string `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	Role        string `bson:"role" json:"role"` // organizer | entrant | admin

	// NotificationsEnabled is the opt-out flag read on every send. A nil
	// value means the field was never set and is treated as enabled.
	NotificationsEnabled *bool `bson:"notifications_enabled,omitempty" json:"notifications_enabled,omitempty"`

	// BlockedOrganizers holds organizer emails this user has muted.
	// Notifications from them are logged but silently marked read.
	BlockedOrganizers []string `bson:"blocked_organizers,omitempty" json:"blocked_organizers,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// WantsNotifications reports the effective opt-out state (default enabled).
func (u *User) WantsNotifications() bool {
	return u.NotificationsEnabled == nil || *u.NotificationsEnabled
}

// HasBlocked reports whether the given organizer email is muted by this user.
func (u *User) HasBlocked(organizerEmail string) bool {
	for _, e := range u.BlockedOrganizers {
		if e == organizerEmail {
			return true
		}
	}
	return false
}
