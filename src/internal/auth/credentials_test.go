// FILE: logtrace/src/internal/auth/credentials_test.go
package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))

	_, err = HashPassword("", bcrypt.MinCost)
	assert.Error(t, err)

	_, err = HashPassword("x", bcrypt.MaxCost+1)
	assert.Error(t, err)
}

func TestIssueToken_Validation(t *testing.T) {
	_, err := IssueToken("short", "s", "", "", time.Hour)
	assert.Error(t, err)

	_, err = IssueToken(testKey, "s", "", "", 0)
	assert.Error(t, err)

	token, err := IssueToken(testKey, "s", "", "", time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(32)
	require.NoError(t, err)
	b, err := GenerateToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)

	_, err = GenerateToken(8)
	assert.Error(t, err)
}
