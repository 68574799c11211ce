// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/atlasevents/backend/internal/app/lottery"
	eventstore "github.com/atlasevents/backend/internal/app/store/events"
	invitestore "github.com/atlasevents/backend/internal/app/store/invites"
	"github.com/atlasevents/backend/internal/app/store/notiflogs"
	notifstore "github.com/atlasevents/backend/internal/app/store/notifications"
	userstore "github.com/atlasevents/backend/internal/app/store/users"
	"github.com/atlasevents/backend/internal/app/system/indexes"
	"github.com/atlasevents/backend/internal/app/system/tasks"
	"github.com/atlasevents/backend/internal/app/system/timeouts"
	"github.com/atlasevents/backend/internal/app/watch"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB establishes the MongoDB connection and assembles the stores,
// the lottery service, the watch manager, and the background task runner.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	connectCtx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return DBDeps{}, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, err
	}

	db := client.Database(appCfg.MongoDatabase)
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	users := userstore.New(db)
	events := eventstore.New(db)
	invites := invitestore.New(db, logger)
	notifLog := notiflogs.New(db)
	notifs := notifstore.New(db, users, notifLog, logger)
	lotterySvc := lottery.New(events, invites, notifs, appCfg.InviteTTL, logger)

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
		Users:         users,
		Events:        events,
		Invites:       invites,
		NotifLog:      notifLog,
		Notifs:        notifs,
		Lottery:       lotterySvc,
		Watch:         watch.NewManager(db, events, notifs, users, logger),
		Tasks:         tasks.NewRunner(logger),
	}
	return deps, nil
}

// EnsureSchema reconciles the collection indexes with the expected set.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return indexes.EnsureAll(ctx, deps.MongoDatabase)
}
