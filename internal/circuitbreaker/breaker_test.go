package circuitbreaker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/common/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxFailures:           2,
		Timeout:               50 * time.Millisecond,
		MaxConcurrentRequests: 1,
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewGoBreaker("token", testConfig(), logging.GetGlobalLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := cb.Execute(ctx, func() error { return stderrors.New("connection refused") })
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewGoBreaker("recover", testConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = cb.Execute(ctx, func() error { return stderrors.New("down") })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_UpstreamClientErrorsDoNotTrip(t *testing.T) {
	cb := NewGoBreaker("client-errors", testConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := cb.Execute(ctx, func() error {
			return errors.UpstreamAuthError(400, `{"error":"invalid_grant"}`)
		})
		assert.True(t, errors.IsType(err, errors.ErrTypeUpstreamAuth), "the original error is returned")
	}

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Stats().Failures)
}

func TestBreaker_CancelledContext(t *testing.T) {
	cb := NewGoBreaker("cancelled", testConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error {
		t.Fatal("fn must not run with a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestNewGoBreaker_InvalidConfigFallsBack(t *testing.T) {
	cb := NewGoBreaker("invalid", Config{}, nil)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "invalid", cb.Stats().Name)
	assert.Error(t, Config{}.Validate())
	assert.NoError(t, OAuthConfig.Validate())
	assert.NoError(t, HTTPConfig.Validate())
}
