package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marketplace-oauth/internal/common/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	previous := logging.GetGlobalLogger()
	buf := &bytes.Buffer{}
	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.DebugLevel, Output: buf})
	require.NoError(t, err)
	logging.SetGlobalLogger(logger)
	t.Cleanup(func() { logging.SetGlobalLogger(previous) })
	return buf
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rr.Header().Get(RequestIDHeader))
}

func TestRequestID_ReusesInbound(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "req-42", seen)

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.NotEqual(t, strings.Repeat("x", maxRequestIDLength+1), seen)
}

func TestLoggingMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			buf := captureLogs(t)
			handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/items?user_id=123", nil))

			out := buf.String()
			assert.Contains(t, out, tt.level)
			assert.Contains(t, out, "HTTP request completed")
			assert.Contains(t, out, `"path": "/items"`)
			assert.Contains(t, out, `"user_id": "123"`)
		})
	}
}

func TestLoggingMiddleware_DoesNotLogAuthorizationCode(t *testing.T) {
	buf := captureLogs(t)
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/callback?code=SECRET-CODE&state=abc", nil))

	out := buf.String()
	assert.Contains(t, out, `"status": 200`)
	assert.NotContains(t, out, "SECRET-CODE")
}
