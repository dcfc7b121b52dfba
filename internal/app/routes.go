package app

import (
	"net/http"

	"marketplace-oauth/internal/common/ratelimit"
	"marketplace-oauth/internal/handlers"
	"marketplace-oauth/internal/middleware"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all HTTP routes for the application. clientKey
// identifies the caller for rate limiting.
func SetupRoutes(router *mux.Router, h *handlers.Handlers, rateLimiter *ratelimit.Limiter, clientKey func(*http.Request) string) {
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware)

	// Health check stays outside the rate limit for probes
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	limited := router.NewRoute().Subrouter()
	if rateLimiter != nil {
		limited.Use(rateLimiter.HTTPMiddleware(clientKey))
	}

	// Authorization round trip
	limited.HandleFunc("/", h.Home).Methods("GET")
	limited.HandleFunc("/callback", h.Callback).Methods("GET")

	// Token access
	api := limited.PathPrefix("/api").Subrouter()
	api.HandleFunc("/token/{userId}", h.GetToken).Methods("GET")
	api.HandleFunc("/users", h.ListUsers).Methods("GET")

	// Listing pass-through
	limited.HandleFunc("/items", h.SellerItems).Methods("GET")
	limited.HandleFunc("/items/{itemId}/price", h.ItemPrice).Methods("GET")
	limited.HandleFunc("/promotions", h.Promotions).Methods("GET")
	limited.HandleFunc("/promotions/{id}/items", h.PromotionItems).Methods("GET")
}
