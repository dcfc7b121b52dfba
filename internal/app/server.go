package app

import (
	"net/http"

	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/handlers"
	"marketplace-oauth/internal/server"

	"github.com/gorilla/mux"
)

// Handler builds the routed HTTP handler
func (app *App) Handler() http.Handler {
	checks := map[string]handlers.HealthChecker{
		"store": app.Store,
	}
	if app.RedisClient != nil {
		checks["redis"] = app.RedisClient
	}

	rateLimiter := app.InitializeRateLimiter()
	stats := map[string]func() interface{}{
		"marketplace_breaker":    func() interface{} { return app.Marketplace.BreakerStats() },
		"marketplace_rate_limit": func() interface{} { return app.Marketplace.RateLimitStats() },
	}
	if rateLimiter != nil {
		stats["inbound_rate_limit"] = func() interface{} { return rateLimiter.Stats() }
	}

	h := handlers.New(app.Tokens, app.Listings, checks, handlers.Options{
		SecureCookies: app.Config.CookieSecure,
		Stats:         stats,
		Logger:        app.Logger.WithFields(logging.String("component", "handlers")),
	})

	router := mux.NewRouter()
	SetupRoutes(router, h, rateLimiter, app.ClientKey())
	return router
}

// RunServer creates the HTTP server with all handlers configured
func (app *App) RunServer() *server.Server {
	return server.New(app.Handler(), app.Config.Addr(), app.Config.TLSCertFile, app.Config.TLSKeyFile)
}
