// Package sqlstore implements storage.TokenStore on database/sql. The sqlite
// and postgres packages open the connection, run migrations and hand it here.
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/models"
	"marketplace-oauth/internal/storage"
)

const (
	tokenColumns = "id, access_token, refresh_token, token_type, expires_in, scope, user_id, created_at"

	insertToken = `INSERT INTO tokens (access_token, refresh_token, token_type, expires_in, scope, user_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`

	selectCurrent = `SELECT ` + tokenColumns + ` FROM tokens WHERE user_id = ?
ORDER BY created_at DESC, id DESC LIMIT 1`

	selectHistory = `SELECT ` + tokenColumns + ` FROM tokens WHERE user_id = ?
ORDER BY created_at ASC, id ASC`

	selectUsers = `SELECT DISTINCT user_id FROM tokens WHERE user_id IS NOT NULL AND user_id <> '' ORDER BY user_id`
)

// Store is a token store over a *sql.DB
type Store struct {
	db      *sql.DB
	dialect Dialect

	insertQuery  string
	currentQuery string
	historyQuery string
	usersQuery   string
}

// New wraps an open database. The tokens table must already exist.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:           db,
		dialect:      dialect,
		insertQuery:  dialect.rebind(insertToken),
		currentQuery: dialect.rebind(selectCurrent),
		historyQuery: dialect.rebind(selectHistory),
		usersQuery:   selectUsers,
	}
}

func (s *Store) Save(ctx context.Context, token *models.TokenRecord) (*models.TokenRecord, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}

	stored := token.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.CreatedAt = stored.CreatedAt.UTC().Truncate(time.Microsecond)

	err := s.db.QueryRowContext(ctx, s.insertQuery,
		stored.AccessToken,
		stored.RefreshToken,
		stored.TokenType,
		stored.ExpiresIn,
		stored.Scope,
		stored.UserID,
		s.dialect.EncodeTime(stored.CreatedAt),
	).Scan(&stored.ID)
	if err != nil {
		return nil, errors.InternalError("failed to save token", err).WithContext("user_id", stored.UserID)
	}

	return stored, nil
}

func (s *Store) Current(ctx context.Context, userID string) (*models.TokenRecord, error) {
	token, err := scanToken(s.db.QueryRowContext(ctx, s.currentQuery, userID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.TokenNotFoundError(userID)
	}
	if err != nil {
		return nil, errors.InternalError("failed to load current token", err).WithContext("user_id", userID)
	}
	return token, nil
}

func (s *Store) History(ctx context.Context, userID string) ([]*models.TokenRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.historyQuery, userID)
	if err != nil {
		return nil, errors.InternalError("failed to load token history", err).WithContext("user_id", userID)
	}
	defer rows.Close()

	var tokens []*models.TokenRecord
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, errors.InternalError("failed to scan token", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalError("failed to iterate token history", err)
	}
	return tokens, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.usersQuery)
	if err != nil {
		return nil, errors.InternalError("failed to list users", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, errors.InternalError("failed to scan user id", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalError("failed to iterate users", err)
	}
	return users, nil
}

func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.ConnectionError(fmt.Sprintf("%s database unreachable", s.dialect.Name), err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanToken reads one row. Rows written by older tooling may carry NULL
// token_type, expires_in or scope; a NULL expires_in reads as 0.
func scanToken(row rowScanner) (*models.TokenRecord, error) {
	var (
		token     models.TokenRecord
		tokenType sql.NullString
		expiresIn sql.NullInt64
		scope     sql.NullString
		createdAt interface{}
	)

	if err := row.Scan(
		&token.ID,
		&token.AccessToken,
		&token.RefreshToken,
		&tokenType,
		&expiresIn,
		&scope,
		&token.UserID,
		&createdAt,
	); err != nil {
		return nil, err
	}

	token.TokenType = tokenType.String
	token.ExpiresIn = expiresIn.Int64
	token.Scope = scope.String

	created, ok := decodeTime(createdAt)
	if !ok {
		return nil, fmt.Errorf("unrecognised created_at value %v for token %d", createdAt, token.ID)
	}
	token.CreatedAt = created

	return &token, nil
}

var _ storage.TokenStore = (*Store)(nil)
