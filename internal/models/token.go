package models

import (
	"time"

	"marketplace-oauth/internal/common/errors"
)

// TokenRecord is one issued credential set. Records are append-only; the
// current token for a user is the newest record.
type TokenRecord struct {
	ID           int64     `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"` // seconds, 0 when the issuer gave none
	Scope        string    `json:"scope"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasExpiry reports whether the issuer told us how long the token lives
func (t *TokenRecord) HasExpiry() bool {
	return t.ExpiresIn > 0
}

// ExpiresAt returns CreatedAt + ExpiresIn
func (t *TokenRecord) ExpiresAt() time.Time {
	return t.CreatedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsDue reports whether the token expires within margin of now. Tokens with
// no known expiry are never due.
func (t *TokenRecord) IsDue(now time.Time, margin time.Duration) bool {
	if !t.HasExpiry() {
		return false
	}
	return t.ExpiresAt().Sub(now) <= margin
}

// Validate checks the fields every stored record must carry
func (t *TokenRecord) Validate() error {
	switch {
	case t.AccessToken == "":
		return errors.ValidationError("access token is required")
	case t.RefreshToken == "":
		return errors.ValidationError("refresh token is required")
	case t.UserID == "":
		return errors.ValidationError("user id is required")
	case t.ExpiresIn < 0:
		return errors.ValidationError("expires_in must not be negative")
	}
	return nil
}

// Clone returns a copy safe to hand out of a store
func (t *TokenRecord) Clone() *TokenRecord {
	c := *t
	return &c
}

// TokenSummary is what the callback shows the browser; secrets stay server side
type TokenSummary struct {
	UserID    string     `json:"user_id"`
	TokenType string     `json:"token_type"`
	Scope     string     `json:"scope"`
	ExpiresIn int64      `json:"expires_in"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Summary builds the public view of the record
func (t *TokenRecord) Summary() TokenSummary {
	s := TokenSummary{
		UserID:    t.UserID,
		TokenType: t.TokenType,
		Scope:     t.Scope,
		ExpiresIn: t.ExpiresIn,
	}
	if t.HasExpiry() {
		expiresAt := t.ExpiresAt().UTC()
		s.ExpiresAt = &expiresAt
	}
	return s
}
