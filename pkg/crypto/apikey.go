package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// KeyPrefix marks every SkyCast API key secret
	KeyPrefix = "wd_live_"
	// keyRandomBytes gives 256 bits of entropy per secret
	keyRandomBytes = 32
	// FragmentLen is the number of secret characters stored in clear to
	// narrow validation candidates. Too short to help an offline attack.
	FragmentLen = 8
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12
)

var (
	bcryptGenerateFromHash = bcrypt.GenerateFromPassword
	randomRead             = rand.Read
)

// GenerateAPIKey returns a fresh plaintext secret: wd_live_ + 64 hex chars.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := randomRead(buf); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// HasKeyPrefix reports whether a presented secret could be one of ours.
func HasKeyPrefix(secret string) bool {
	return strings.HasPrefix(secret, KeyPrefix)
}

// KeyFragment extracts the non-secret lookup fragment of a secret.
func KeyFragment(secret string) string {
	body := strings.TrimPrefix(secret, KeyPrefix)
	if len(body) < FragmentLen {
		return body
	}
	return body[:FragmentLen]
}

// HashAPIKey hashes a plaintext secret with bcrypt
func HashAPIKey(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = DefaultCost
	}
	bytes, err := bcryptGenerateFromHash([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(bytes), nil
}

// CheckAPIKey compares a plaintext secret with a stored hash in constant time
func CheckAPIKey(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// HashPassword hashes a user password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcryptGenerateFromHash([]byte(password), DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
