package eventstore

import (
	"testing"

	"github.com/atlasevents/backend/internal/domain/models"
)

func TestBuildSearchKeywords_NamePrefixes(t *testing.T) {
	got := BuildSearchKeywords("Swim", nil)

	want := []string{"sw", "swi", "swim"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildSearchKeywords_Folded(t *testing.T) {
	got := BuildSearchKeywords("Crème", nil)

	has := make(map[string]bool)
	for _, k := range got {
		has[k] = true
	}
	if !has["creme"] {
		t.Errorf("expected diacritics-folded keyword 'creme', got %v", got)
	}
}

func TestBuildSearchKeywords_MultiWordAndTags(t *testing.T) {
	got := BuildSearchKeywords("Swim Lessons", []string{"Pool"})

	has := make(map[string]bool)
	for _, k := range got {
		has[k] = true
	}
	// Whole-name prefix, per-word prefixes, tag prefixes
	for _, want := range []string{"swim le", "swim", "lessons", "le", "pool", "po"} {
		if !has[want] {
			t.Errorf("expected keyword %q, got %v", want, got)
		}
	}
}

func TestBuildSearchKeywords_NoDuplicates(t *testing.T) {
	got := BuildSearchKeywords("Go Go", nil)

	seen := make(map[string]int)
	for _, k := range got {
		seen[k]++
		if seen[k] > 1 {
			t.Errorf("duplicate keyword %q in %v", k, got)
		}
	}
}

func TestBuildSearchKeywords_SkipsShortWords(t *testing.T) {
	got := BuildSearchKeywords("A", nil)
	if len(got) != 0 {
		t.Errorf("expected no keywords for single-rune name, got %v", got)
	}
}

func TestMergeEvents_DedupesPreservingOrder(t *testing.T) {
	a := []models.Event{{ID: "1"}, {ID: "2"}}
	b := []models.Event{{ID: "2"}, {ID: "3"}, {ID: "1"}}

	merged := mergeEvents(a, b)
	if len(merged) != 3 {
		t.Fatalf("expected 3 events, got %d", len(merged))
	}
	for i, want := range []string{"1", "2", "3"} {
		if merged[i].ID != want {
			t.Errorf("merged[%d]: got %q, want %q", i, merged[i].ID, want)
		}
	}
}
