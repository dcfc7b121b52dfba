package redisstore

import (
	"context"
	"testing"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, "test:"), mr
}

func token(user, access string, created time.Time) *models.TokenRecord {
	return &models.TokenRecord{
		AccessToken:  access,
		RefreshToken: "RT-" + access,
		TokenType:    "bearer",
		ExpiresIn:    21600,
		Scope:        "offline_access",
		UserID:       user,
		CreatedAt:    created,
	}
}

func TestStore_SaveAndCurrent(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := store.Save(ctx, token("42", "AT1", t0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	_, err = store.Save(ctx, token("42", "AT2", t0.Add(6*time.Hour)))
	require.NoError(t, err)

	current, err := store.Current(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "AT2", current.AccessToken)
	assert.Equal(t, "RT-AT2", current.RefreshToken)
	assert.Equal(t, int64(21600), current.ExpiresIn)
	assert.True(t, t0.Add(6*time.Hour).Equal(current.CreatedAt))

	assert.True(t, mr.Exists("test:tokens:records"))
	assert.True(t, mr.Exists("test:tokens:user:42"))
}

func TestStore_OlderInsertDoesNotBecomeCurrent(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.Save(ctx, token("42", "NEW", t0.Add(time.Hour)))
	require.NoError(t, err)
	_, err = store.Save(ctx, token("42", "OLD", t0))
	require.NoError(t, err)

	current, err := store.Current(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "NEW", current.AccessToken)

	history, err := store.History(ctx, "42")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "OLD", history[0].AccessToken)
	assert.Equal(t, "NEW", history[1].AccessToken)
}

func TestStore_TieBrokenByLatestInsert(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// ids 9 and 10 would sort wrongly without zero padding
	for i := 1; i <= 10; i++ {
		_, err := store.Save(ctx, token("42", "AT"+string(rune('A'+i)), t0))
		require.NoError(t, err)
	}

	current, err := store.Current(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, int64(10), current.ID)
}

func TestStore_NotFoundAndValidation(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	_, err := store.Current(ctx, "999")
	assert.True(t, errors.IsType(err, errors.ErrTypeTokenNotFound))

	_, err = store.Save(ctx, &models.TokenRecord{AccessToken: "AT", RefreshToken: "RT"})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	history, err := store.History(ctx, "999")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStore_ListUsers(t *testing.T) {
	ctx := context.Background()
	store, _ := setupStore(t)

	for _, user := range []string{"300", "100", "200", "100"} {
		_, err := store.Save(ctx, token(user, "AT", time.Now()))
		require.NoError(t, err)
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200", "300"}, users)
}

func TestStore_Health(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t)

	require.NoError(t, store.Health(ctx))

	mr.SetError("ERR server unavailable")
	err := store.Health(ctx)
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}

func TestMember(t *testing.T) {
	assert.Equal(t, "00000000000000000009", member(9))
	assert.Less(t, member(9), member(10))
}
