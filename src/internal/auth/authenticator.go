// FILE: logtrace/src/internal/auth/authenticator.go
package auth

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"logtrace/src/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	cleanupInterval  = 5 * time.Minute
	defaultFailDelay = 500 * time.Millisecond
)

// dummyHash keeps unknown-user lookups as slow as real bcrypt comparisons
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z4TPmfSMz8xxdSp6j1KW0Fvm")

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many authentication attempts")
)

// verifier checks an Authorization header and returns the client identity.
type verifier func(header string) (username string, err error)

// Authenticator guards a network sink. A nil *Authenticator admits everyone.
// Credential tables are fixed after New.
type Authenticator struct {
	config *config.ServerAuthConfig
	logger *log.Logger
	verify verifier

	basicUsers   map[string]string // username -> bcrypt hash
	staticTokens map[string]struct{}

	// failDelay slows down credential guessing
	failDelay time.Duration

	guard    *attemptGuard
	sessions *sessionTable

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns nil for a nil config or type "none".
func New(cfg *config.ServerAuthConfig, logger *log.Logger) (*Authenticator, error) {
	if cfg == nil || cfg.Type == "" || cfg.Type == "none" {
		return nil, nil
	}

	a := &Authenticator{
		config:       cfg,
		logger:       logger,
		basicUsers:   make(map[string]string),
		staticTokens: make(map[string]struct{}),
		failDelay:    defaultFailDelay,
		guard:        newAttemptGuard(logger),
		sessions:     newSessionTable(),
	}

	var err error
	switch cfg.Type {
	case "basic":
		a.verify, err = a.basicVerifier(cfg.Basic)
	case "token":
		a.verify, err = a.tokenVerifier(cfg.Token)
	case "jwt":
		a.verify, err = jwtVerifier(cfg.JWT)
	default:
		err = fmt.Errorf("unsupported auth type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.cleanupLoop(ctx)

	logger.Info("msg", "Authenticator initialized",
		"component", "auth",
		"type", cfg.Type)

	return a, nil
}

func (a *Authenticator) basicVerifier(cfg *config.BasicAuthConfig) (verifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("basic auth config missing")
	}
	for _, user := range cfg.Users {
		a.basicUsers[user.Username] = user.PasswordHash
	}
	if cfg.UsersFile != "" {
		if err := a.loadUsersFile(cfg.UsersFile); err != nil {
			return nil, fmt.Errorf("failed to load users file: %w", err)
		}
	}

	return func(header string) (string, error) {
		payload, ok := strings.CutPrefix(header, "Basic ")
		if !ok {
			return "", fmt.Errorf("invalid basic auth header")
		}
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("invalid base64 encoding")
		}
		username, password, ok := strings.Cut(string(decoded), ":")
		if !ok {
			return "", fmt.Errorf("invalid credentials format")
		}

		hash, known := a.basicUsers[username]
		if !known {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
			return "", ErrInvalidCredentials
		}
		return username, nil
	}, nil
}

func (a *Authenticator) tokenVerifier(cfg *config.TokenAuthConfig) (verifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("token auth config missing")
	}
	for _, token := range cfg.Tokens {
		a.staticTokens[token] = struct{}{}
	}

	return func(header string) (string, error) {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return "", fmt.Errorf("invalid bearer auth header")
		}
		if _, ok := a.staticTokens[token]; !ok {
			return "", ErrInvalidCredentials
		}
		return "", nil
	}, nil
}

// jwtVerifier accepts HMAC-signed tokens with an expiry; the subject becomes
// the session username.
func jwtVerifier(cfg *config.JWTConfig) (verifier, error) {
	if cfg == nil || cfg.SigningKey == "" {
		return nil, fmt.Errorf("jwt auth requires a signing key")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(5 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(cfg.SigningKey)

	return func(header string) (string, error) {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return "", fmt.Errorf("invalid bearer auth header")
		}
		claims := &jwt.RegisteredClaims{}
		token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil {
			return "", fmt.Errorf("JWT validation failed: %w", err)
		}
		if !token.Valid {
			return "", fmt.Errorf("invalid JWT token")
		}
		return claims.Subject, nil
	}, nil
}

func (a *Authenticator) Close() {
	if a == nil {
		return
	}
	a.cancel()
	<-a.done
}

// Realm is the basic auth realm advertised in WWW-Authenticate.
func (a *Authenticator) Realm() string {
	if a == nil || a.config.Basic == nil || a.config.Basic.Realm == "" {
		return "logtrace"
	}
	return a.config.Basic.Realm
}

func (a *Authenticator) Type() string {
	if a == nil {
		return "none"
	}
	return a.config.Type
}

// AuthenticateHTTP checks an Authorization header value from remoteAddr and
// opens a session on success. Failures are delayed and count against the
// client IP.
func (a *Authenticator) AuthenticateHTTP(authHeader, remoteAddr string) (*Session, error) {
	if a == nil {
		return newSession("", "none", remoteAddr), nil
	}

	ip := hostOf(remoteAddr)
	if err := a.guard.admit(ip, time.Now()); err != nil {
		return nil, err
	}

	username, err := a.verify(authHeader)
	if err != nil {
		a.guard.failed(ip)
		a.logger.Warn("msg", "Authentication failed",
			"component", "auth",
			"type", a.config.Type,
			"remote_addr", remoteAddr,
			"error", err)
		if a.failDelay > 0 {
			time.Sleep(a.failDelay)
		}
		return nil, err
	}
	a.guard.succeeded(ip)

	session := newSession(username, a.config.Type, remoteAddr)
	a.sessions.put(session)
	a.logger.Info("msg", "Session created",
		"component", "auth",
		"session_id", session.ID,
		"username", session.Username,
		"method", session.Method,
		"remote_addr", session.RemoteAddr)
	return session, nil
}

// Touch refreshes a session's activity time. Returns false for unknown sessions.
func (a *Authenticator) Touch(sessionID string) bool {
	if a == nil {
		return true
	}
	return a.sessions.touch(sessionID, time.Now())
}

// EndSession forgets a session when its stream closes.
func (a *Authenticator) EndSession(sessionID string) {
	if a == nil {
		return
	}
	a.sessions.remove(sessionID)
}

func (a *Authenticator) cleanupLoop(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.cleanup(now)
		}
	}
}

func (a *Authenticator) cleanup(now time.Time) {
	for _, id := range a.sessions.expire(now) {
		a.logger.Debug("msg", "Session expired",
			"component", "auth",
			"session_id", id)
	}
	a.guard.prune(now)
}

// loadUsersFile reads "username:bcrypt-hash" lines. Blank lines and #
// comments are skipped; file users override inline users of the same name.
func (a *Authenticator) loadUsersFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open users file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		username, hash, ok := strings.Cut(line, ":")
		username, hash = strings.TrimSpace(username), strings.TrimSpace(hash)
		if !ok || username == "" || hash == "" {
			a.logger.Warn("msg", "Skipping malformed line in users file",
				"component", "auth",
				"path", path,
				"line_number", n)
			continue
		}
		a.basicUsers[username] = hash
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading users file: %w", err)
	}

	a.logger.Info("msg", "Loaded users from file",
		"component", "auth",
		"path", path,
		"user_count", len(a.basicUsers))
	return nil
}

func (a *Authenticator) GetStats() map[string]any {
	if a == nil {
		return map[string]any{"enabled": false}
	}

	return map[string]any{
		"enabled":         true,
		"type":            a.config.Type,
		"active_sessions": a.sessions.size(),
		"basic_users":     len(a.basicUsers),
		"static_tokens":   len(a.staticTokens),
		"tracked_ips":     a.guard.size(),
	}
}
