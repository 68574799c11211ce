// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/atlasevents/backend/internal/app/system/tasks"
	"github.com/atlasevents/backend/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It attaches
// the waitlist watchers for existing events and schedules the periodic jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.ConfigureFromEnv()

	// Watchers and jobs outlive the startup call; they stop in Shutdown.
	if err := deps.Watch.Start(context.Background()); err != nil {
		return err
	}

	deps.Tasks.Add(tasks.InviteExpirySweepJob(deps.Invites, logger, appCfg.SweepInterval))
	deps.Tasks.Start(context.Background())

	return nil
}
