package storage

import (
	"context"
	"fmt"

	"marketplace-oauth/internal/crypto"
	"marketplace-oauth/internal/models"
)

// EncryptedStore encrypts access and refresh tokens before they reach the
// wrapped store and decrypts them on the way out. Clear-text rows written
// before encryption was enabled are still readable.
type EncryptedStore struct {
	TokenStore
	cipher *crypto.TokenCipher
}

// NewEncryptedStore wraps store with a cipher derived from encryptionKey
func NewEncryptedStore(store TokenStore, encryptionKey string) (*EncryptedStore, error) {
	cipher, err := crypto.NewTokenCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cipher: %w", err)
	}
	return &EncryptedStore{TokenStore: store, cipher: cipher}, nil
}

func (s *EncryptedStore) Save(ctx context.Context, token *models.TokenRecord) (*models.TokenRecord, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}

	sealed := token.Clone()
	var err error
	if sealed.AccessToken, err = s.cipher.Encrypt(token.AccessToken); err != nil {
		return nil, err
	}
	if sealed.RefreshToken, err = s.cipher.Encrypt(token.RefreshToken); err != nil {
		return nil, err
	}

	stored, err := s.TokenStore.Save(ctx, sealed)
	if err != nil {
		return nil, err
	}

	result := token.Clone()
	result.ID = stored.ID
	result.CreatedAt = stored.CreatedAt
	return result, nil
}

func (s *EncryptedStore) Current(ctx context.Context, userID string) (*models.TokenRecord, error) {
	token, err := s.TokenStore.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.open(token)
}

func (s *EncryptedStore) History(ctx context.Context, userID string) ([]*models.TokenRecord, error) {
	tokens, err := s.TokenStore.History(ctx, userID)
	if err != nil {
		return nil, err
	}

	opened := make([]*models.TokenRecord, 0, len(tokens))
	for _, token := range tokens {
		t, err := s.open(token)
		if err != nil {
			return nil, err
		}
		opened = append(opened, t)
	}
	return opened, nil
}

func (s *EncryptedStore) open(token *models.TokenRecord) (*models.TokenRecord, error) {
	result := token.Clone()
	var err error
	if result.AccessToken, err = s.cipher.Decrypt(token.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token %d: %w", token.ID, err)
	}
	if result.RefreshToken, err = s.cipher.Decrypt(token.RefreshToken); err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token %d: %w", token.ID, err)
	}
	return result, nil
}
