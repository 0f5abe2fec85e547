// FILE: logtrace/src/cmd/logtrace/commands/auth_test.go
package commands

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"

	"logtrace/src/internal/auth"
	"logtrace/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthCommand(passwords ...string) (*AuthCommand, *bytes.Buffer) {
	out := &bytes.Buffer{}
	ac := &AuthCommand{output: out, errOut: &bytes.Buffer{}}
	ac.readPassword = func(string) (string, error) {
		if len(passwords) == 0 {
			return "", errors.New("no input")
		}
		p := passwords[0]
		passwords = passwords[1:]
		return p, nil
	}
	return ac, out
}

func quoted(t *testing.T, s, key string) string {
	t.Helper()
	m := regexp.MustCompile(key + ` = "([^"]+)"`).FindStringSubmatch(s)
	require.Len(t, m, 2, "missing %s in output", key)
	return m[1]
}

func TestAuthCommand_Basic(t *testing.T) {
	ac, out := newTestAuthCommand()
	require.NoError(t, ac.Execute([]string{"-u", "admin", "-p", "hunter22", "--cost", "4"}))

	s := out.String()
	assert.Contains(t, s, `type = "basic"`)
	assert.Contains(t, s, `username = "admin"`)

	hash := quoted(t, s, "password_hash")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
	assert.Contains(t, s, "admin:"+hash)
}

func TestAuthCommand_BasicPrompt(t *testing.T) {
	t.Run("Matching", func(t *testing.T) {
		ac, out := newTestAuthCommand("s3cret", "s3cret")
		require.NoError(t, ac.Execute([]string{"--user=ops", "--cost=4"}))
		hash := quoted(t, out.String(), "password_hash")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
	})

	t.Run("Mismatch", func(t *testing.T) {
		ac, _ := newTestAuthCommand("one", "two")
		err := ac.Execute([]string{"-u", "ops", "--cost", "4"})
		assert.ErrorContains(t, err, "don't match")
	})

	t.Run("ColonInUsername", func(t *testing.T) {
		ac, _ := newTestAuthCommand()
		assert.Error(t, ac.Execute([]string{"-u", "a:b", "-p", "x"}))
	})
}

func TestAuthCommand_Token(t *testing.T) {
	ac, out := newTestAuthCommand()
	require.NoError(t, ac.Execute([]string{"-k", "-l", "24"}))

	s := out.String()
	assert.Contains(t, s, `type = "token"`)
	lines := strings.Split(strings.TrimSpace(s), "\n")
	token := lines[len(lines)-1]
	assert.Len(t, token, 32, "24 bytes encode to 32 base64 characters")

	ac, _ = newTestAuthCommand()
	assert.Error(t, ac.Execute([]string{"--token", "--length=8"}))
}

func TestAuthCommand_JWT(t *testing.T) {
	ac, out := newTestAuthCommand()
	require.NoError(t, ac.Execute([]string{"--jwt", "--subject", "dash", "--issuer", "logtrace", "--ttl", "1h"}))

	s := out.String()
	key := quoted(t, s, "signing_key")
	lines := strings.Split(strings.TrimSpace(s), "\n")
	token := lines[len(lines)-1]

	// The issued token must be accepted by an authenticator built from the snippet
	a, err := auth.New(&config.ServerAuthConfig{
		Type: "jwt",
		JWT:  &config.JWTConfig{SigningKey: key, Issuer: "logtrace"},
	}, log.NewLogger())
	require.NoError(t, err)
	defer a.Close()

	session, err := a.AuthenticateHTTP("Bearer "+token, "127.0.0.1:5000")
	require.NoError(t, err)
	assert.Equal(t, "dash", session.Username)

	ac, _ = newTestAuthCommand()
	assert.Error(t, ac.Execute([]string{"--jwt", "--key", "short"}))
}

func TestAuthCommand_Usage(t *testing.T) {
	ac, _ := newTestAuthCommand()
	assert.Error(t, ac.Execute(nil))
	assert.Error(t, ac.Execute([]string{"extra"}))
}
