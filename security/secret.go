package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

// HashSecret hashes a client secret with bcrypt at the default cost.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

// CompareSecret reports whether secret matches a bcrypt hash. bcrypt compares
// in constant time.
func CompareSecret(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// GenerateToken returns a URL-safe random string with 256 bits of entropy,
// suitable for access tokens, refresh tokens, codes and state values.
func GenerateToken() string {
	return oauth2.GenerateVerifier()
}
