package oauth2

import (
	"crypto/subtle"
	"time"

	"marketplace-oauth/internal/common/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// StateCookieName is the cookie carrying the signed state between / and /callback
	StateCookieName = "oauth_state"
	// DefaultStateTTL bounds how long a user has to complete the consent screen
	DefaultStateTTL = 10 * time.Minute

	minStateSecretLength = 32
	stateSubject         = "oauth_state"
)

// StateCodec signs and verifies the CSRF state cookie
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateCodec creates a codec signing with HS256
func NewStateCodec(secret string, ttl time.Duration, now func() time.Time) (*StateCodec, error) {
	if len(secret) < minStateSecretLength {
		return nil, errors.ValidationError("state secret must be at least 32 characters long")
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// TTL returns how long a signed state stays valid
func (c *StateCodec) TTL() time.Duration {
	return c.ttl
}

// Sign returns a cookie value binding state to the browser
func (c *StateCodec) Sign(state string) (string, error) {
	issuedAt := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        state,
		Subject:   stateSubject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign state", err)
	}
	return signed, nil
}

// Verify checks that cookie was issued by Sign for state and has not expired
func (c *StateCodec) Verify(cookie, state string) error {
	if cookie == "" {
		return errors.InvalidStateError("state cookie is missing")
	}
	if state == "" {
		return errors.InvalidStateError("state parameter is missing")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(cookie, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(stateSubject),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return errors.InvalidStateError(err.Error())
	}
	if !token.Valid {
		return errors.InvalidStateError("state cookie is not valid")
	}

	if subtle.ConstantTimeCompare([]byte(claims.ID), []byte(state)) != 1 {
		return errors.InvalidStateError("state does not match")
	}
	return nil
}
