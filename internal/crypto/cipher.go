// Package crypto provides AES-256-GCM encryption of OAuth tokens at rest.
//
// Each encryption uses a random nonce, so encrypting the same token twice
// produces different ciphertexts. Ciphertexts carry a version prefix which
// lets rows written before encryption was enabled still be read.
//
// Example usage:
//
//	cipher, err := crypto.NewTokenCipher(os.Getenv("TOKEN_ENCRYPTION_KEY"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sealed, err := cipher.Encrypt(accessToken)
//	...
//	accessToken, err = cipher.Decrypt(sealed)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"marketplace-oauth/internal/common/errors"

	"golang.org/x/crypto/pbkdf2"
)

// Prefix marks values produced by Encrypt.
const Prefix = "enc:v1:"

const (
	keySalt       = "marketplace-oauth-token-salt"
	keyIterations = 10000
)

// TokenCipher encrypts and decrypts token strings with AES-256-GCM.
//
// The cipher is safe for concurrent use by multiple goroutines.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives a 32-byte key from the passphrase with PBKDF2 and
// prepares the AEAD. An empty passphrase is rejected.
func NewTokenCipher(passphrase string) (*TokenCipher, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), []byte(keySalt), keyIterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &TokenCipher{aead: gcm}, nil
}

// Encrypt seals plaintext and returns Prefix + base64(nonce + ciphertext).
// Empty strings are returned as empty strings without encryption.
func (c *TokenCipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without Prefix are
// returned unchanged. Tampered or foreign-key ciphertexts fail.
func (c *TokenCipher) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}

	return string(plaintext), nil
}

// IsEncrypted reports whether value carries the ciphertext prefix
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}
