// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/atlasevents/backend/internal/app/lottery"
	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	invitestore "github.com/atlasevents/backend/internal/app/store/invites"
	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/system/tasks"
	"github.com/atlasevents/backend/internal/app/watch"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
// Extend this struct as your app evolves.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Users    *userstore.Store
	Events   *eventstore.Store
	Invites  *invitestore.Store
	NotifLog *notiflogs.Store
	Notifs   *notifstore.Store
	Lottery  *lottery.Service

	Watch *watch.Manager
	Tasks *tasks.Runner
}
