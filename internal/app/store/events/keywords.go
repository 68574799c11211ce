package eventstore

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// BuildSearchKeywords materializes the keyword array stored on each event.
// Every word of the name and every tag contributes its folded prefixes (two
// runes and up), so both keyword search and name-prefix search reduce to a
// single array-membership query.
func BuildSearchKeywords(name string, tags []string) []string {
	seen := make(map[string]bool)
	var keywords []string

	add := func(word string) {
		word = text.Fold(strings.TrimSpace(word))
		runes := []rune(word)
		if len(runes) < 2 {
			return
		}
		for i := 2; i <= len(runes); i++ {
			prefix := string(runes[:i])
			if !seen[prefix] {
				seen[prefix] = true
				keywords = append(keywords, prefix)
			}
		}
	}

	// Whole-name prefixes cover multi-word queries like "swim le".
	add(name)
	for _, word := range strings.Fields(name) {
		add(word)
	}
	for _, tag := range tags {
		add(tag)
	}
	return keywords
}

func foldKeyword(q string) string {
	return text.Fold(strings.TrimSpace(q))
}
