package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name: "basic error",
			appError: &AppError{
				Type:    ErrTypeConfig,
				Message: "configuration is invalid",
			},
			want: "config: configuration is invalid",
		},
		{
			name:     "upstream status",
			appError: UpstreamAuthError(400, `{"error":"invalid_grant"}`),
			want:     "upstream_auth: token endpoint rejected the request: status=400",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeConnection,
				Message: "database connection failed",
				Cause:   errors.New("network timeout"),
			},
			want: "connection: database connection failed: cause=network timeout",
		},
		{
			name: "context keys are sorted",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "field validation failed",
				Context: map[string]interface{}{
					"value": "invalid",
					"field": "user_id",
				},
			},
			want: "validation: field validation failed: context={field=user_id, value=invalid}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	appErr := InternalError("wrapped", cause)

	assert.Same(t, cause, errors.Unwrap(appErr))
	assert.True(t, errors.Is(appErr, cause))
}

func TestUpstreamAuthError_KeepsRawBody(t *testing.T) {
	err := UpstreamAuthError(http.StatusBadRequest, `{"message":"invalid code"}`)

	assert.Equal(t, ErrTypeUpstreamAuth, err.Type)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, `{"message":"invalid code"}`, err.Body)
}

func TestIsType_FollowsWrapping(t *testing.T) {
	wrapped := fmt.Errorf("refresh failed: %w", TokenNotFoundError("999"))

	assert.True(t, IsType(wrapped, ErrTypeTokenNotFound))
	assert.False(t, IsType(wrapped, ErrTypeUpstreamAuth))
	assert.False(t, IsType(nil, ErrTypeTokenNotFound))
	assert.False(t, IsType(errors.New("plain"), ErrTypeTokenNotFound))
}

func TestGetType(t *testing.T) {
	assert.Equal(t, ErrorType(""), GetType(nil))
	assert.Equal(t, ErrTypeInternal, GetType(errors.New("plain")))
	assert.Equal(t, ErrTypeInvalidState, GetType(InvalidStateError("mismatch")))
}

func TestAs(t *testing.T) {
	appErr, ok := As(fmt.Errorf("outer: %w", UpstreamAPIError("items", 503, "down")))
	require.True(t, ok)
	assert.Equal(t, 503, appErr.Status)
	assert.Equal(t, "down", appErr.Body)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsUpstreamClientError(t *testing.T) {
	assert.True(t, IsUpstreamClientError(UpstreamAuthError(400, "")))
	assert.True(t, IsUpstreamClientError(UpstreamAPIError("items", 404, "")))
	assert.False(t, IsUpstreamClientError(UpstreamAPIError("items", 502, "")))
	assert.False(t, IsUpstreamClientError(errors.New("dial tcp: refused")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{MissingAuthorizationCodeError(), http.StatusBadRequest},
		{InvalidStateError("mismatch"), http.StatusBadRequest},
		{ValidationError("bad"), http.StatusBadRequest},
		{TokenNotFoundError("1"), http.StatusNotFound},
		{UpstreamAuthError(400, ""), http.StatusBadGateway},
		{UpstreamAPIError("items", 500, ""), http.StatusBadGateway},
		{MissingUserIdentifierError(), http.StatusBadGateway},
		{RateLimitError("ip"), http.StatusTooManyRequests},
		{ConnectionError("redis", nil), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
