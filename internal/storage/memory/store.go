// Package memory is an in-process token store for tests and single-instance
// development. Contents are lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/models"
	"marketplace-oauth/internal/storage"
)

func init() {
	storage.Register("memory", func(ctx context.Context, opts storage.Options) (storage.TokenStore, error) {
		return New(), nil
	})
}

// Store keeps every record per user in insertion order
type Store struct {
	mu     sync.RWMutex
	nextID int64
	byUser map[string][]*models.TokenRecord
}

func New() *Store {
	return &Store{byUser: make(map[string][]*models.TokenRecord)}
}

func (s *Store) Save(ctx context.Context, token *models.TokenRecord) (*models.TokenRecord, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}

	stored := token.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.nextID++
	stored.ID = s.nextID
	s.byUser[stored.UserID] = append(s.byUser[stored.UserID], stored)
	s.mu.Unlock()

	return stored.Clone(), nil
}

func (s *Store) Current(ctx context.Context, userID string) (*models.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var current *models.TokenRecord
	for _, token := range s.byUser[userID] {
		if current == nil || newer(token, current) {
			current = token
		}
	}
	if current == nil {
		return nil, errors.TokenNotFoundError(userID)
	}
	return current.Clone(), nil
}

func (s *Store) History(ctx context.Context, userID string) ([]*models.TokenRecord, error) {
	s.mu.RLock()
	tokens := make([]*models.TokenRecord, 0, len(s.byUser[userID]))
	for _, token := range s.byUser[userID] {
		tokens = append(tokens, token.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(tokens, func(i, j int) bool { return newer(tokens[j], tokens[i]) })
	return tokens, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	users := make([]string, 0, len(s.byUser))
	for userID := range s.byUser {
		users = append(users, userID)
	}
	s.mu.RUnlock()

	sort.Strings(users)
	return users, nil
}

func (s *Store) Health(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// newer orders by creation time, then by id
func newer(a, b *models.TokenRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

var _ storage.TokenStore = (*Store)(nil)
