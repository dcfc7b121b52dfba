package app

import (
	"context"
	"net/http"

	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/config"
	"marketplace-oauth/internal/listings"
	"marketplace-oauth/internal/locks"
	"marketplace-oauth/internal/marketplace"
	"marketplace-oauth/internal/oauth2"
	"marketplace-oauth/internal/redis"
	"marketplace-oauth/internal/storage"

	commonhttp "marketplace-oauth/internal/common/http"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Store       storage.TokenStore
	RedisClient *redis.Client
	Locks       locks.Manager
	HTTPClient  *http.Client
	Tokens      *oauth2.Manager
	Marketplace *marketplace.Client
	Listings    *listings.Service
	Logger      logging.Logger
}

// New creates a new application instance with all dependencies
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	// Initialize components in order of dependency
	if err := app.initializeRedis(); err != nil {
		return nil, err
	}

	if err := app.initializeStorage(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeLocks()

	app.HTTPClient = commonhttp.NewHTTPClientWithTimeout(cfg.HTTPTimeout)

	if err := app.initializeTokens(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeMarketplace(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) initializeTokens() error {
	manager, err := oauth2.NewManager(oauth2.Config{
		ClientID:      app.Config.ClientID,
		ClientSecret:  app.Config.ClientSecret,
		RedirectURL:   app.Config.RedirectURI,
		AuthURL:       app.Config.AuthURL,
		TokenURL:      app.Config.TokenURL,
		StateSecret:   app.Config.StateSecret,
		RefreshMargin: app.Config.RefreshMargin,
		Timeout:       app.Config.HTTPTimeout,
	}, app.Store,
		oauth2.WithHTTPClient(app.HTTPClient),
		oauth2.WithLocker(app.Locks),
		oauth2.WithLogger(app.Logger.WithFields(logging.String("component", "oauth2"))),
	)
	if err != nil {
		return err
	}

	app.Tokens = manager
	app.Logger.Info("Token manager initialized",
		logging.String("token_url", app.Config.TokenURL),
		logging.Duration("refresh_margin", app.Config.RefreshMargin),
	)
	return nil
}

func (app *App) initializeMarketplace() error {
	client, err := marketplace.NewClient(marketplace.Config{
		BaseURL:        app.Config.APIURL,
		Timeout:        app.Config.HTTPTimeout,
		RateLimitRPS:   app.Config.APIRateLimitRPS,
		RateLimitBurst: app.Config.APIRateLimitBurst,
	},
		marketplace.WithHTTPClient(app.HTTPClient),
		marketplace.WithLogger(app.Logger.WithFields(logging.String("component", "marketplace"))),
	)
	if err != nil {
		return err
	}

	app.Marketplace = client
	app.Listings = listings.NewService(app.Tokens, client, app.Logger.WithFields(logging.String("component", "listings")))
	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Locks != nil {
		if err := app.Locks.Close(); err != nil {
			app.Logger.Warn("Failed to close lock manager", logging.Err(err))
		}
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Warn("Failed to close token store", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Failed to close Redis client", logging.Err(err))
		}
	}
}
