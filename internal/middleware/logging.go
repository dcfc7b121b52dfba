package middleware

import (
	"net/http"
	"time"

	"marketplace-oauth/internal/common/logging"

	"github.com/lucsky/cuid"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// RequestID tags every request with an id, reusing a sane inbound one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = cuid.New()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// LoggingMiddleware logs all HTTP requests with method, path, status, and duration.
// The raw query is never logged: the callback carries the authorization code in it.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", wrapped.statusCode),
			{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
			logging.String("remote_addr", r.RemoteAddr),
		}

		if ua := r.Header.Get("User-Agent"); ua != "" {
			fields = append(fields, logging.String("user_agent", ua))
		}
		if userID := r.URL.Query().Get("user_id"); userID != "" {
			fields = append(fields, logging.String("user_id", userID))
		}

		logger := logging.WithContext(r.Context())
		switch {
		case wrapped.statusCode >= 500:
			logger.Error("HTTP request completed", nil, fields...)
		case wrapped.statusCode >= 400:
			logger.Warn("HTTP request completed", fields...)
		default:
			logger.Info("HTTP request completed", fields...)
		}
	})
}
