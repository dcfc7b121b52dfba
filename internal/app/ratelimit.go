package app

import (
	"net/http"

	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/common/ratelimit"
)

// InitializeRateLimiter creates the inbound per-client limiter, nil when disabled
func (app *App) InitializeRateLimiter() *ratelimit.Limiter {
	if !app.Config.RateLimitEnabled {
		app.Logger.Info("Rate Limiting: Disabled")
		return nil
	}

	config := ratelimit.DefaultConfig()
	config.RequestsPerSecond = app.Config.RateLimitRPS
	config.BurstSize = app.Config.RateLimitBurst

	limiter, err := ratelimit.NewLimiter(config)
	if err != nil {
		app.Logger.Warn("Invalid rate limit configuration, rate limiting disabled", logging.Err(err))
		return nil
	}

	app.Logger.Info("Rate Limiting: Enabled",
		logging.Field{Key: "rps", Value: config.RequestsPerSecond},
		logging.Int("burst", config.BurstSize),
	)
	return limiter
}

// ClientKey picks how inbound requests are keyed for rate limiting
func (app *App) ClientKey() func(*http.Request) string {
	keyFunc, err := ratelimit.ClientIPKey(app.Config.TrustedProxies)
	if err != nil {
		app.Logger.Warn("Invalid trusted proxies, keying clients by peer address", logging.Err(err))
		return ratelimit.IPBasedKey
	}
	if len(app.Config.TrustedProxies) > 0 {
		app.Logger.Info("Forwarding headers trusted",
			logging.Int("trusted_proxies", len(app.Config.TrustedProxies)),
		)
	}
	return keyFunc
}
