// Package normalize provides canonical forms for user-supplied identifiers.
//
// Stores call these on every write so that lookups never depend on the casing
// or whitespace a client happened to send. Emails are the primary key of the
// users collection, so Email in particular must be applied before any query.
package normalize

import "strings"

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims a display name but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role lowercases and trims a role value (organizer, entrant, admin).
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// InviteStatus lowercases and trims an invite status value.
func InviteStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryParam trims a search query, preserving case.
func QueryParam(s string) string {
	return strings.TrimSpace(s)
}
