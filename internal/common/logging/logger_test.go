package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := NewZapLogger(LogConfig{Level: level, Output: buf})
	require.NoError(t, err)
	return logger, buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestZapLogger_FiltersBelowLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Info("token refreshed")
	assert.Empty(t, buf.String())

	logger.Warn("refresh margin reached", String("user_id", "123"))
	out := buf.String()
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "refresh margin reached")
	assert.Contains(t, out, `"user_id": "123"`)
}

func TestZapLogger_ErrorIncludesCause(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	logger.Error("token exchange failed", errors.New("connection reset"), Int("status", 502))

	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "connection reset")
	assert.Contains(t, out, `"status": 502`)
}

func TestZapLogger_WithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	logger.WithFields(String("component", "oauth2")).Info("ready")

	assert.Contains(t, buf.String(), `"component": "oauth2"`)
	assert.Same(t, logger, logger.WithFields())
}

func TestZapLogger_WithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, DebugLevel)

	assert.Same(t, logger, logger.WithContext(context.Background()))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "42")
	logger.WithContext(ctx).Info("handled")

	out := buf.String()
	assert.Contains(t, out, `"request_id": "req-1"`)
	assert.Contains(t, out, `"user_id": "42"`)
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestInitGlobalLogger_File(t *testing.T) {
	previous := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(previous) })

	path := filepath.Join(t.TempDir(), "service.log")
	closeFn, err := InitGlobalLogger("debug", path)
	require.NoError(t, err)

	Debug("written to file")
	MustSync()
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Logger initialized")
	assert.Contains(t, string(data), "written to file")
}

func TestInitGlobalLogger_BadPath(t *testing.T) {
	_, err := InitGlobalLogger("info", filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
