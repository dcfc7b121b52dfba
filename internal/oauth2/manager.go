package oauth2

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marketplace-oauth/internal/circuitbreaker"
	"marketplace-oauth/internal/common/errors"
	commonhttp "marketplace-oauth/internal/common/http"
	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/locks"
	"marketplace-oauth/internal/models"
	"marketplace-oauth/internal/storage"

	xoauth2 "golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRefreshMargin is how close to expiry a token gets refreshed
	DefaultRefreshMargin = 2 * time.Minute
	// DefaultTimeout bounds each call to the token endpoint
	DefaultTimeout = 15 * time.Second
)

// Config holds the marketplace OAuth client registration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	// StateSecret signs the state cookie, at least 32 characters
	StateSecret string
	// RefreshMargin of zero selects DefaultRefreshMargin
	RefreshMargin time.Duration
	// Timeout of zero selects DefaultTimeout
	Timeout time.Duration
}

// Validate checks the registration fields
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return errors.ValidationError("client_id is required")
	case c.ClientSecret == "":
		return errors.ValidationError("client_secret is required")
	case c.RedirectURL == "":
		return errors.ValidationError("redirect_url is required")
	case c.AuthURL == "":
		return errors.ValidationError("auth_url is required")
	case c.TokenURL == "":
		return errors.ValidationError("token_url is required")
	case c.RefreshMargin < 0:
		return errors.ValidationError("refresh margin must not be negative")
	case c.Timeout < 0:
		return errors.ValidationError("timeout must not be negative")
	}
	return nil
}

// Authorization is the start of one consent round trip
type Authorization struct {
	// URL is where the browser is sent to grant access
	URL string
	// State is the random value echoed back on the callback
	State string
	// Cookie is the signed value to store in StateCookieName
	Cookie string
}

// Manager acquires, persists and refreshes marketplace tokens
type Manager struct {
	oauth      *xoauth2.Config
	store      storage.TokenStore
	locker     locks.Manager
	breaker    *circuitbreaker.Breaker
	state      *StateCodec
	httpClient *http.Client
	margin     time.Duration
	timeout    time.Duration
	now        func() time.Time
	logger     logging.Logger
	refreshes  singleflight.Group
}

// Option customises a Manager
type Option func(*Manager)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithHTTPClient sets the client used for token endpoint calls
func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = client
	}
}

// WithLocker sets the per-user refresh lock manager
func WithLocker(locker locks.Manager) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithBreaker sets the circuit breaker guarding the token endpoint
func WithBreaker(breaker *circuitbreaker.Breaker) Option {
	return func(m *Manager) {
		m.breaker = breaker
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a manager persisting tokens in store. Without
// WithLocker, refreshes are serialised within this process only.
func NewManager(cfg Config, store storage.TokenStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.ValidationError("token store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RefreshMargin == 0 {
		cfg.RefreshMargin = DefaultRefreshMargin
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	m := &Manager{
		oauth: &xoauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: xoauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: xoauth2.AuthStyleInParams,
			},
		},
		store:   store,
		margin:  cfg.RefreshMargin,
		timeout: cfg.Timeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logging.GetGlobalLogger()
	}
	if m.httpClient == nil {
		m.httpClient = commonhttp.NewHTTPClientWithTimeout(m.timeout)
	}
	if m.locker == nil {
		m.locker = locks.NewLocalManager()
	}
	if m.breaker == nil {
		m.breaker = circuitbreaker.NewGoBreaker("oauth-token-endpoint", circuitbreaker.OAuthConfig, m.logger)
	}

	codec, err := NewStateCodec(cfg.StateSecret, DefaultStateTTL, m.now)
	if err != nil {
		return nil, err
	}
	m.state = codec

	return m, nil
}

// StateTTL returns how long an authorization state stays valid
func (m *Manager) StateTTL() time.Duration {
	return m.state.TTL()
}

// BeginAuthorization builds the authorization URL for a fresh random state
func (m *Manager) BeginAuthorization(ctx context.Context) (Authorization, error) {
	if err := ctx.Err(); err != nil {
		return Authorization{}, err
	}

	state := xoauth2.GenerateVerifier()
	cookie, err := m.state.Sign(state)
	if err != nil {
		return Authorization{}, err
	}

	return Authorization{
		URL:    m.oauth.AuthCodeURL(state),
		State:  state,
		Cookie: cookie,
	}, nil
}

// VerifyState fails with invalid_state unless cookie was issued for state
func (m *Manager) VerifyState(cookie, state string) error {
	return m.state.Verify(cookie, state)
}

// ExchangeCode trades an authorization code for a token and stores it
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*models.TokenRecord, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.MissingAuthorizationCodeError()
	}

	var issued *xoauth2.Token
	err := m.callTokenEndpoint(ctx, func(ctx context.Context) error {
		tok, err := m.oauth.Exchange(ctx, code)
		if err != nil {
			return translateTokenError(err)
		}
		issued = tok
		return nil
	})
	if err != nil {
		m.logger.Error("Authorization code exchange failed", err)
		return nil, err
	}

	userID, ok := userIDFromToken(issued)
	if !ok {
		m.logger.Warn("Token response carried no user id")
		return nil, errors.MissingUserIdentifierError()
	}
	if issued.RefreshToken == "" {
		m.logger.Warn("Token response carried no refresh token", logging.String("user_id", userID))
		return nil, errors.UpstreamAuthError(http.StatusOK, "token response did not include a refresh_token")
	}

	record := m.recordFromToken(issued, userID, nil)
	saved, err := m.store.Save(ctx, record)
	if err != nil {
		m.logger.Error("Failed to store issued token", err, logging.String("user_id", userID))
		return nil, err
	}

	m.logger.Info("Stored token from authorization code",
		logging.String("user_id", saved.UserID),
		logging.Field{Key: "expires_in", Value: saved.ExpiresIn},
	)
	return saved, nil
}

// Refresh exchanges the current refresh token for userID for a new token and
// appends it to the store
func (m *Manager) Refresh(ctx context.Context, userID string) (*models.TokenRecord, error) {
	current, err := m.store.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.refresh(ctx, current)
}

// GetValidToken returns the current token for userID, refreshing it first
// when it expires within the refresh margin
func (m *Manager) GetValidToken(ctx context.Context, userID string) (*models.TokenRecord, error) {
	current, err := m.store.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !current.IsDue(m.now(), m.margin) {
		return current, nil
	}

	m.logger.Debug("Token is due for refresh",
		logging.String("user_id", userID),
		logging.Time("expires_at", current.ExpiresAt()),
	)

	// The shared refresh outlives any single caller; each caller only stops
	// waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := m.refreshes.DoChan(userID, func() (interface{}, error) {
		return m.refreshLocked(shared, userID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.TokenRecord).Clone(), nil
	case <-ctx.Done():
		return nil, errors.InternalError("gave up waiting for token refresh", ctx.Err())
	}
}

// ListUsers returns every user id with a stored token, ascending
func (m *Manager) ListUsers(ctx context.Context) ([]string, error) {
	return m.store.ListUsers(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context, userID string) (*models.TokenRecord, error) {
	// lock wait plus one token call
	ctx, cancel := context.WithTimeout(ctx, 3*m.timeout)
	defer cancel()

	lock, err := m.locker.AcquireLock(ctx, "refresh:"+userID, 2*m.timeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			m.logger.Warn("Failed to release refresh lock",
				logging.String("user_id", userID),
				logging.Err(err),
			)
		}
	}()

	// Another holder may have refreshed while we waited.
	latest, err := m.store.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !latest.IsDue(m.now(), m.margin) {
		return latest, nil
	}

	return m.refresh(ctx, latest)
}

func (m *Manager) refresh(ctx context.Context, current *models.TokenRecord) (*models.TokenRecord, error) {
	var issued *xoauth2.Token
	err := m.callTokenEndpoint(ctx, func(ctx context.Context) error {
		source := m.oauth.TokenSource(ctx, &xoauth2.Token{RefreshToken: current.RefreshToken})
		tok, err := source.Token()
		if err != nil {
			return translateTokenError(err)
		}
		issued = tok
		return nil
	})
	if err != nil {
		m.logger.Error("Token refresh failed", err, logging.String("user_id", current.UserID))
		return nil, err
	}

	if responseUser, ok := userIDFromToken(issued); ok && responseUser != current.UserID {
		m.logger.Warn("Refresh response names a different user, keeping the requested one",
			logging.String("user_id", current.UserID),
			logging.String("response_user_id", responseUser),
		)
	}

	record := m.recordFromToken(issued, current.UserID, current)
	saved, err := m.store.Save(ctx, record)
	if err != nil {
		m.logger.Error("Failed to store refreshed token", err, logging.String("user_id", current.UserID))
		return nil, err
	}

	m.logger.Info("Token refreshed",
		logging.String("user_id", saved.UserID),
		logging.Time("expires_at", saved.ExpiresAt()),
	)
	return saved, nil
}

// callTokenEndpoint runs fn with the per-call timeout, the configured HTTP
// client and the circuit breaker
func (m *Manager) callTokenEndpoint(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, xoauth2.HTTPClient, m.httpClient)

	return m.breaker.Execute(ctx, func() error {
		return fn(ctx)
	})
}

// recordFromToken converts a token response. previous, when set, fills the
// fields a refresh response may omit.
func (m *Manager) recordFromToken(tok *xoauth2.Token, userID string, previous *models.TokenRecord) *models.TokenRecord {
	record := &models.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresInFromToken(tok),
		Scope:        stringExtra(tok, "scope"),
		UserID:       userID,
		CreatedAt:    m.now().UTC(),
	}

	if previous != nil {
		if record.RefreshToken == "" {
			record.RefreshToken = previous.RefreshToken
		}
		if record.TokenType == "" {
			record.TokenType = previous.TokenType
		}
		if record.Scope == "" {
			record.Scope = previous.Scope
		}
	}
	return record
}

// translateTokenError maps token endpoint failures onto the error taxonomy
func translateTokenError(err error) error {
	var retrieveErr *xoauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return errors.UpstreamAuthError(status, string(retrieveErr.Body))
	}

	if stderrors.Is(err, context.Canceled) {
		return err
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return errors.ConnectionError("token endpoint is unreachable", err)
	}

	// A 2xx answer the client library could not use, e.g. no access_token.
	return errors.UpstreamAuthError(http.StatusOK, err.Error())
}

var userIDKeys = []string{"user_id", "x_ml_user_id"}

// userIDFromToken reads the marketplace user id, which arrives as a number or
// a string under either of two names
func userIDFromToken(tok *xoauth2.Token) (string, bool) {
	for _, key := range userIDKeys {
		if id := stringExtra(tok, key); id != "" {
			return id, true
		}
	}
	return "", false
}

func expiresInFromToken(tok *xoauth2.Token) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	}
	return 0
}

func stringExtra(tok *xoauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	}
	return ""
}
