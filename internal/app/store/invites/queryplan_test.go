package invitestore

import (
	"errors"
	"testing"
	"time"

	"github.com/atlasevents/backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestSortByCreatedDesc(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	invites := []models.Invite{
		{ID: "b", CreatedAt: t2},
		{ID: "a", CreatedAt: t1},
		{ID: "c", CreatedAt: t3},
	}
	SortByCreatedDesc(invites)

	want := []string{"c", "b", "a"}
	for i, id := range want {
		if invites[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, invites[i].ID, id)
		}
	}
}

func TestSortByCreatedDesc_ZeroTimesSortLast(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	invites := []models.Invite{
		{ID: "legacy1"}, // no created_at
		{ID: "dated", CreatedAt: t1},
		{ID: "legacy2"},
	}
	SortByCreatedDesc(invites)

	if invites[0].ID != "dated" {
		t.Errorf("expected dated invite first, got %q", invites[0].ID)
	}
	// Legacy invites keep their relative order at the tail
	if invites[1].ID != "legacy1" || invites[2].ID != "legacy2" {
		t.Errorf("expected stable tail order legacy1,legacy2; got %q,%q", invites[1].ID, invites[2].ID)
	}
}

func TestIsIndexMissing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("connection reset"), false},
		{"no query plans code", mongo.CommandError{Code: 291, Message: "error processing query"}, true},
		{"memory limit code", mongo.CommandError{Code: 292, Message: "Sort exceeded memory limit"}, true},
		{"unrelated code", mongo.CommandError{Code: 11000, Message: "duplicate key"}, false},
		{"message match", errors.New("planner returned error: query requires an index"), true},
		{"sort memory message", errors.New("sort operation used more than the maximum memory limit"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsIndexMissing(tt.err); got != tt.want {
				t.Errorf("IsIndexMissing(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPendingQueryPlan_DegradeIsSticky(t *testing.T) {
	p := newPendingQueryPlan()
	if p.isDegraded() {
		t.Fatal("new plan should start on the primary tier")
	}
	p.degrade()
	if !p.isDegraded() {
		t.Fatal("plan should stay degraded once switched")
	}
	p.degrade()
	if !p.isDegraded() {
		t.Fatal("repeated degrade must not reset the plan")
	}
}
