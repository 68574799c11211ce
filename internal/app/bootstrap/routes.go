// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	eventsfeature "github.com/atlasevents/backend/internal/app/features/events"
	healthfeature "github.com/atlasevents/backend/internal/app/features/health"
	invitesfeature "github.com/atlasevents/backend/internal/app/features/invites"
	notificationsfeature "github.com/atlasevents/backend/internal/app/features/notifications"
	usersfeature "github.com/atlasevents/backend/internal/app/features/users"
	"github.com/atlasevents/backend/internal/app/system/limits"
	"github.com/atlasevents/backend/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// AtlasEvents mounts JSON feature routers for users, events, invites, and
// notifications, plus the health endpoint. The notify and lottery handlers
// are event-scoped, so they register on the events router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	usersHandler := usersfeature.NewHandler(deps.Users, logger)
	eventsHandler := eventsfeature.NewHandler(deps.Events, deps.Watch, logger)
	invitesHandler := invitesfeature.NewHandler(deps.Invites, deps.Lottery, logger)
	notificationsHandler := notificationsfeature.NewHandler(
		deps.MongoDatabase, deps.Events, deps.Notifs, deps.Users, deps.NotifLog, deps.Lottery, logger)

	apiLimiter := ratelimit.New(120, time.Minute)
	bulkLimiter := ratelimit.Middleware(ratelimit.New(10, time.Minute))

	r := chi.NewRouter()

	r.Get("/health", healthHandler.Serve)

	r.Route("/api", func(r chi.Router) {
		r.Use(limits.JSONBody)
		r.Use(ratelimit.Middleware(apiLimiter))

		r.Mount("/users", usersfeature.Routes(usersHandler))
		r.Mount("/events", eventsfeature.Routes(eventsHandler,
			bulkLimiter(http.HandlerFunc(notificationsHandler.ServeNotify)).ServeHTTP,
			bulkLimiter(http.HandlerFunc(notificationsHandler.ServeLottery)).ServeHTTP))
		r.Mount("/invites", invitesfeature.Routes(invitesHandler))
		r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler))
		r.Get("/notification-logs", notificationsHandler.ServeLogs)
	})

	return r, nil
}
