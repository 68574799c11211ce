// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	invitestore "github.com/atlasevents/backend/internal/app/store/invites"
	"go.uber.org/zap"
)

// InviteExpirySweepJob creates a job that flags overdue pending invites as
// expired. Readers already exclude overdue invites, so the sweep is a
// consistency backstop rather than a correctness requirement.
func InviteExpirySweepJob(invStore *invitestore.Store, logger *zap.Logger, interval time.Duration) Job {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return Job{
		Name:     "invite-expiry-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			count, err := invStore.ExpireOverdue(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("expired overdue invites", zap.Int64("count", count))
			}
			return nil
		},
	}
}
