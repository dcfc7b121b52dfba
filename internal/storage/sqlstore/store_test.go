package sqlstore

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, Postgres), mock
}

var columns = []string{"id", "access_token", "refresh_token", "token_type", "expires_in", "scope", "user_id", "created_at"}

func TestDialect_Rebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", Postgres.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ? AND b = ?", SQLite.rebind("a = ? AND b = ?"))
}

func TestDecodeTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)

	for _, v := range []interface{}{
		want,
		want.In(time.FixedZone("BRT", -3*3600)),
		"2024-03-01 12:30:45",
		[]byte("2024-03-01 12:30:45.000000"),
		"2024-03-01T12:30:45Z",
		"2024-03-01 12:30:45+00:00",
	} {
		got, ok := decodeTime(v)
		require.True(t, ok, "%v", v)
		assert.True(t, want.Equal(got), "%v decoded to %v", v, got)
		assert.Equal(t, time.UTC, got.Location())
	}

	_, ok := decodeTime(nil)
	assert.False(t, ok)
	_, ok = decodeTime("yesterday")
	assert.False(t, ok)
}

func TestStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tokens")).
		WithArgs("AT1", "RT1", "bearer", int64(21600), "offline_access", "42", created.Truncate(time.Microsecond)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	stored, err := store.Save(context.Background(), &models.TokenRecord{
		AccessToken:  "AT1",
		RefreshToken: "RT1",
		TokenType:    "bearer",
		ExpiresIn:    21600,
		Scope:        "offline_access",
		UserID:       "42",
		CreatedAt:    created,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.ID)
	assert.Equal(t, created.Truncate(time.Microsecond), stored.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveRejectsIncomplete(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Save(context.Background(), &models.TokenRecord{AccessToken: "AT", RefreshToken: "RT"})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.NoError(t, mock.ExpectationsWereMet(), "no query must be issued")
}

func TestStore_SaveFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO tokens")).WillReturnError(sql.ErrConnDone)

	_, err := store.Save(context.Background(), &models.TokenRecord{AccessToken: "AT", RefreshToken: "RT", UserID: "1"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestStore_Current(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT 1")).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(3), "AT3", "RT3", "bearer", int64(21600), "read", "42", created))

	token, err := store.Current(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(3), token.ID)
	assert.Equal(t, "AT3", token.AccessToken)
	assert.Equal(t, created, token.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CurrentLegacyNullColumns(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, access_token")).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), "AT", "RT", nil, nil, nil, "42", "2023-05-01 08:00:00"))

	token, err := store.Current(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, int64(0), token.ExpiresIn)
	assert.False(t, token.HasExpiry())
	assert.Empty(t, token.TokenType)
	assert.Equal(t, time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC), token.CreatedAt)
}

func TestStore_CurrentNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, access_token")).
		WithArgs("999").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := store.Current(context.Background(), "999")
	assert.True(t, errors.IsType(err, errors.ErrTypeTokenNotFound))
}

func TestStore_History(t *testing.T) {
	store, mock := newMockStore(t)
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at ASC, id ASC")).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), "AT1", "RT1", "bearer", int64(21600), "", "42", t0).
			AddRow(int64(2), "AT2", "RT2", "bearer", int64(21600), "", "42", t0.Add(6*time.Hour)))

	history, err := store.History(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "AT1", history[0].AccessToken)
	assert.Equal(t, "AT2", history[1].AccessToken)
}

func TestStore_ListUsers(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT user_id FROM tokens")).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("100").AddRow("200"))

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "200"}, users)
}

func TestStore_Health(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	store := New(db, Postgres)

	mock.ExpectPing()
	assert.NoError(t, store.Health(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	err = store.Health(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
}
