// Package handlers serves the inbound HTTP API. It is the only place where
// errors are translated into HTTP status codes.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/models"
	"marketplace-oauth/internal/oauth2"
)

// TokenManager is the token lifecycle the handlers drive
type TokenManager interface {
	BeginAuthorization(ctx context.Context) (oauth2.Authorization, error)
	VerifyState(cookie, state string) error
	ExchangeCode(ctx context.Context, code string) (*models.TokenRecord, error)
	GetValidToken(ctx context.Context, userID string) (*models.TokenRecord, error)
	ListUsers(ctx context.Context) ([]string, error)
	StateTTL() time.Duration
}

// ListingService fetches seller listing data
type ListingService interface {
	SellerItems(ctx context.Context, userID string) (*models.SellerItemsResponse, error)
	ItemPrice(ctx context.Context, userID, itemID string) (*models.ItemPriceResponse, error)
	Promotions(ctx context.Context, userID string) (json.RawMessage, error)
	PromotionItems(ctx context.Context, userID, promotionID, promotionType, status string) (json.RawMessage, error)
}

// HealthChecker is a dependency reported by /health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options holds handler settings
type Options struct {
	// SecureCookies marks the state cookie Secure
	SecureCookies bool
	// HealthTimeout bounds each dependency check, zero selects 5s
	HealthTimeout time.Duration
	// Stats are reported under "stats" by /health without affecting its status
	Stats         map[string]func() interface{}
	Logger        logging.Logger
}

type Handlers struct {
	tokens        TokenManager
	listings      ListingService
	checks        map[string]HealthChecker
	stats         map[string]func() interface{}
	secureCookies bool
	healthTimeout time.Duration
	logger        logging.Logger
}

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

func New(tokens TokenManager, listings ListingService, checks map[string]HealthChecker, opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	if checks == nil {
		checks = map[string]HealthChecker{}
	}

	return &Handlers{
		tokens:        tokens,
		listings:      listings,
		checks:        checks,
		stats:         opts.Stats,
		secureCookies: opts.SecureCookies,
		healthTimeout: opts.HealthTimeout,
		logger:        opts.Logger,
	}
}

func (h *Handlers) sendJSONResponse(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, data)
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// sendRawJSON writes an upstream payload without re-encoding it
func (h *Handlers) sendRawJSON(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(raw); err != nil {
		h.logger.Error("Failed to write response", err)
	}
}

// sendError maps err onto a status code and the {error, message} body
func (h *Handlers) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	response := ErrorResponse{
		Error:   string(errors.GetType(err)),
		Message: "internal server error",
	}

	if appErr, ok := errors.As(err); ok && status != http.StatusInternalServerError {
		response.Message = appErr.Message
		response.UpstreamStatus = appErr.Status
	}

	logger := h.logger.WithContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", err,
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
		)
	} else {
		logger.Warn("Request rejected",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Err(err),
		)
	}

	h.sendJSON(w, status, response)
}
