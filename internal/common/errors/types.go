package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeMissingAuthorizationCode is returned when the OAuth callback carries no code
	ErrTypeMissingAuthorizationCode ErrorType = "missing_authorization_code"
	// ErrTypeInvalidState is returned when the CSRF state does not match the one issued
	ErrTypeInvalidState ErrorType = "invalid_state"
	// ErrTypeUpstreamAuth is returned when the token endpoint answers with a non-2xx
	// status or with a token that cannot be stored
	ErrTypeUpstreamAuth ErrorType = "upstream_auth"
	// ErrTypeTokenNotFound is returned when no token is stored for a user
	ErrTypeTokenNotFound ErrorType = "token_not_found"
	// ErrTypeUpstreamAPI is returned when a marketplace API call answers with a non-2xx status
	ErrTypeUpstreamAPI ErrorType = "upstream_api"
	// ErrTypeMissingUserIdentifier is returned when a token response carries no user id
	ErrTypeMissingUserIdentifier ErrorType = "missing_user_identifier"

	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeRateLimit represents rate limit errors
	ErrTypeRateLimit ErrorType = "rate_limit"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Status  int                    `json:"status,omitempty"` // upstream HTTP status, when one was involved
	Body    string                 `json:"-"`                // raw upstream response body
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// MissingAuthorizationCodeError is returned by the callback when no code was received
func MissingAuthorizationCodeError() *AppError {
	return &AppError{
		Type:    ErrTypeMissingAuthorizationCode,
		Message: "no authorization code received",
	}
}

// InvalidStateError is returned when the callback state does not verify
func InvalidStateError(reason string) *AppError {
	return &AppError{
		Type:    ErrTypeInvalidState,
		Message: fmt.Sprintf("invalid authorization state: %s", reason),
	}
}

// UpstreamAuthError wraps a non-2xx answer from the token endpoint
func UpstreamAuthError(status int, body string) *AppError {
	return &AppError{
		Type:    ErrTypeUpstreamAuth,
		Message: "token endpoint rejected the request",
		Status:  status,
		Body:    body,
	}
}

// TokenNotFoundError is returned when no token is stored for userID
func TokenNotFoundError(userID string) *AppError {
	return &AppError{
		Type:    ErrTypeTokenNotFound,
		Message: fmt.Sprintf("no token stored for user %s", userID),
	}
}

// UpstreamAPIError wraps a non-2xx answer from the marketplace API
func UpstreamAPIError(endpoint string, status int, body string) *AppError {
	return &AppError{
		Type:    ErrTypeUpstreamAPI,
		Message: fmt.Sprintf("marketplace call %s failed", endpoint),
		Status:  status,
		Body:    body,
	}
}

// MissingUserIdentifierError is returned when a token response lacks a user id
func MissingUserIdentifierError() *AppError {
	return &AppError{
		Type:    ErrTypeMissingUserIdentifier,
		Message: "token response did not include a user identifier",
	}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// RateLimitError creates a new rate limit error
func RateLimitError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimit,
		Message: fmt.Sprintf("rate limit exceeded for %s", resource),
	}
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	appErr, ok := As(err)
	if !ok {
		return ErrTypeInternal
	}

	return appErr.Type
}

// IsUpstreamClientError reports whether err carries a 4xx upstream status.
// Those answers are the remote side saying no, not the remote side being down.
func IsUpstreamClientError(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	return appErr.Status >= 400 && appErr.Status < 500
}

// HTTPStatus maps an error to the status code the web layer should answer with
func HTTPStatus(err error) int {
	switch GetType(err) {
	case "":
		return http.StatusOK
	case ErrTypeMissingAuthorizationCode, ErrTypeInvalidState, ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeTokenNotFound:
		return http.StatusNotFound
	case ErrTypeUpstreamAuth, ErrTypeUpstreamAPI, ErrTypeMissingUserIdentifier:
		return http.StatusBadGateway
	case ErrTypeConnection:
		return http.StatusServiceUnavailable
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
