package app

import (
	"context"
	"fmt"

	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/storage"

	_ "marketplace-oauth/internal/storage/memory"
	_ "marketplace-oauth/internal/storage/postgres"
	_ "marketplace-oauth/internal/storage/redisstore"
	_ "marketplace-oauth/internal/storage/sqlite"
)

func (app *App) initializeStorage(ctx context.Context) error {
	store, err := storage.NewTokenStore(ctx, storage.Options{
		Config: app.Config,
		Redis:  app.RedisClient,
		Logger: app.Logger.WithFields(logging.String("component", "storage")),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Store = store
	app.Logger.Info("Token store ready",
		logging.String("type", app.Config.DatabaseType),
		logging.Field{Key: "encrypted", Value: app.Config.EncryptionKey != ""},
	)
	return nil
}
