// Package sanitize strips unsafe markup from user-supplied text.
//
// Notification titles, messages, and invite messages are written by one user
// and rendered on another user's device, so everything persisted through the
// notification and invite stores passes through here first.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = bluemonday.StrictPolicy()
	ugc    = bluemonday.UGCPolicy()
)

// Text reduces input to plain text: all tags removed, entities decoded,
// whitespace trimmed. Use for titles and notification messages.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// HTML keeps user-generated-content markup (paragraphs, emphasis, links) while
// removing scripts and event handlers. Use for event descriptions.
func HTML(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}
