// FILE: logtrace/src/internal/auth/credentials.go
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// MinSigningKeyLen is the shortest accepted HMAC key.
const MinSigningKeyLen = 32

// HashPassword returns a bcrypt hash for a basic auth user entry.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// IssueToken signs an HS256 JWT accepted by a "jwt" authenticator with the same key.
func IssueToken(signingKey, subject, issuer, audience string, ttl time.Duration) (string, error) {
	if len(signingKey) < MinSigningKeyLen {
		return "", fmt.Errorf("signing key must be at least %d bytes", MinSigningKeyLen)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GenerateToken returns a random URL-safe static bearer token of n bytes.
func GenerateToken(n int) (string, error) {
	if n < 16 || n > 512 {
		return "", fmt.Errorf("token length must be between 16 and 512 bytes")
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
