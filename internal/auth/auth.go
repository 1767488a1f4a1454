// Package auth verifies the admin API key.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// HashPrefix marks a stored key produced by HashKey.
	HashPrefix = "hash:v1:"

	DefaultBcryptCost = 10

	// bcrypt ignores input past 72 bytes.
	maxBcryptInput = 72
)

var (
	// ErrUnauthorized is returned for a missing or wrong key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotConfigured is returned when no admin key is set.
	ErrNotConfigured = errors.New("admin API key not configured")
)

// KeyVerifier checks presented keys against the configured admin key, which
// may be plain text or a bcrypt hash (with or without HashPrefix).
type KeyVerifier struct {
	plain []byte
	hash  []byte
}

func NewKeyVerifier(configured string) *KeyVerifier {
	configured = strings.TrimSpace(configured)
	v := &KeyVerifier{}
	switch {
	case configured == "":
	case strings.HasPrefix(configured, HashPrefix):
		v.hash = []byte(strings.TrimPrefix(configured, HashPrefix))
	case strings.HasPrefix(configured, "$2"):
		v.hash = []byte(configured)
	default:
		v.plain = []byte(configured)
	}
	return v
}

// Configured reports whether any admin key is set.
func (v *KeyVerifier) Configured() bool {
	return len(v.plain) > 0 || len(v.hash) > 0
}

// Hashed reports whether the configured key is a bcrypt hash.
func (v *KeyVerifier) Hashed() bool { return len(v.hash) > 0 }

// Verify returns nil when key matches.
func (v *KeyVerifier) Verify(key string) error {
	if !v.Configured() {
		return ErrNotConfigured
	}
	if key == "" {
		return ErrUnauthorized
	}
	if v.Hashed() {
		if bcrypt.CompareHashAndPassword(v.hash, bcryptInput(key)) != nil {
			return ErrUnauthorized
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(key), v.plain) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// HashKey returns a prefixed bcrypt hash suitable for ADMIN_API_KEY.
func HashKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("key cannot be empty")
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return HashPrefix + string(hash), nil
}

// GenerateKey returns a random hex key built from n bytes of entropy.
func GenerateKey(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func bcryptInput(key string) []byte {
	in := []byte(key)
	if len(in) > maxBcryptInput {
		sum := sha256.Sum256(in)
		in = sum[:]
	}
	return in
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
