package app

import (
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/locks"
	"marketplace-oauth/internal/redis"
)

// initializeRedis connects when REDIS_ADDRESS is set. Redis is only
// mandatory when it is also the token store.
func (app *App) initializeRedis() error {
	if !app.Config.RedisEnabled() {
		app.Logger.Info("Redis: Not configured (refresh locks are process local)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		if app.Config.DatabaseType == "redis" {
			return err
		}
		app.Logger.Warn("Redis initialization failed, continuing without Redis", logging.Err(err))
		return nil
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.String("address", app.Config.RedisAddress))
	return nil
}

// initializeLocks picks distributed refresh locks when Redis is available
func (app *App) initializeLocks() {
	if app.RedisClient != nil {
		manager, err := locks.NewRedsyncManager(app.RedisClient)
		if err == nil {
			app.Locks = manager
			app.Logger.Info("Distributed Locks: Enabled")
			return
		}
		app.Logger.Warn("Distributed locks unavailable, using local locks", logging.Err(err))
	}

	app.Locks = locks.NewLocalManager()
}
