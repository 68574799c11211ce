package invitestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/atlasevents/backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// pendingQueryPlan picks between two ways of listing pending invites:
//
//   - primary: server-side sort on created_at desc, which needs the
//     recipient/status/created_at index
//   - degraded: unsorted query with an in-memory sort
//
// A deployment missing the index fails the primary tier with an index error;
// the plan then switches to degraded for the life of the process and the
// failed call is retried once on the lower tier. Anything else propagates.
type pendingQueryPlan struct {
	mu       sync.RWMutex
	degraded bool
}

func newPendingQueryPlan() *pendingQueryPlan {
	return &pendingQueryPlan{}
}

func (p *pendingQueryPlan) isDegraded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.degraded
}

func (p *pendingQueryPlan) degrade() {
	p.mu.Lock()
	p.degraded = true
	p.mu.Unlock()
}

func (p *pendingQueryPlan) run(ctx context.Context, c *mongo.Collection, filter bson.M) ([]models.Invite, error) {
	if !p.isDegraded() {
		invites, err := fetchSorted(ctx, c, filter)
		if err == nil {
			return invites, nil
		}
		if !IsIndexMissing(err) {
			return nil, err
		}
		p.degrade()
	}

	invites, err := fetchUnsorted(ctx, c, filter)
	if err != nil {
		return nil, err
	}
	SortByCreatedDesc(invites)
	return invites, nil
}

func fetchSorted(ctx context.Context, c *mongo.Collection, filter bson.M) ([]models.Invite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invites []models.Invite
	if err := cur.All(ctx, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

func fetchUnsorted(ctx context.Context, c *mongo.Collection, filter bson.M) ([]models.Invite, error) {
	cur, err := c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var invites []models.Invite
	if err := cur.All(ctx, &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// SortByCreatedDesc orders invites newest first. Invites without a creation
// time (written before the field existed) sort last, in stable input order.
func SortByCreatedDesc(invites []models.Invite) {
	sort.SliceStable(invites, func(i, j int) bool {
		a, b := invites[i].CreatedAt, invites[j].CreatedAt
		if a.IsZero() {
			return false
		}
		if b.IsZero() {
			return true
		}
		return a.After(b)
	})
}

// Server error codes that indicate the sort could not be served by an index.
const (
	codeCannotIndexParallelArrays = 171
	codeNoQueryExecutionPlans     = 291
	codeQueryExceededMemoryLimit  = 292
)

// IsIndexMissing classifies errors that mean "this query needs an index the
// server does not have". Used to decide whether a degraded retry makes sense.
func IsIndexMissing(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case codeCannotIndexParallelArrays, codeNoQueryExecutionPlans, codeQueryExceededMemoryLimit:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no matching index") ||
		strings.Contains(msg, "requires an index") ||
		strings.Contains(msg, "add an index") ||
		strings.Contains(msg, "memory limit") && strings.Contains(msg, "sort")
}
