// Package storage persists OAuth token records.
//
// Token history is append-only: refreshing a token inserts a new record and
// nothing is ever updated or deleted. The current token for a user is the
// record with the greatest creation timestamp, ties broken by the greatest id.
//
// Backends live in sub-packages and register themselves with the default
// registry:
//
//	import _ "marketplace-oauth/internal/storage/sqlite"
//
//	store, err := storage.NewTokenStore(ctx, storage.Options{Config: cfg})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
package storage

import (
	"context"

	"marketplace-oauth/internal/models"
)

// TokenStore is the persistence contract used by the token manager
type TokenStore interface {
	// Save appends a record. It assigns ID, and CreatedAt when zero, and
	// returns the stored copy. Records missing an access token, refresh
	// token or user id are rejected with a validation error.
	Save(ctx context.Context, token *models.TokenRecord) (*models.TokenRecord, error)

	// Current returns the newest record for userID, or a token_not_found error
	Current(ctx context.Context, userID string) (*models.TokenRecord, error)

	// History returns every record for userID, oldest first
	History(ctx context.Context, userID string) ([]*models.TokenRecord, error)

	// ListUsers returns the distinct user ids with at least one record, ascending
	ListUsers(ctx context.Context) ([]string, error)

	Health(ctx context.Context) error
	Close() error
}
