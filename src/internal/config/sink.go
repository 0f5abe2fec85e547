// FILE: logtrace/src/internal/config/sink.go
package config

// SinkConfig represents an output destination. Exactly one option block
// matching Type must be set.
type SinkConfig struct {
	// Sink type: "console", "http", "tcp"
	Type string `toml:"type"`

	Console *ConsoleSinkOptions `toml:"console"`
	HTTP    *HTTPSinkOptions    `toml:"http"`
	TCP     *TCPSinkOptions     `toml:"tcp"`
}

type ConsoleSinkOptions struct {
	// "stdout", "stderr" or "split" (error and fault to stderr)
	Target     string `toml:"target"`
	BufferSize int64  `toml:"buffer_size"`
}

type HTTPSinkOptions struct {
	Host           string            `toml:"host"`
	Port           int64             `toml:"port"`
	StreamPath     string            `toml:"stream_path"`
	StatusPath     string            `toml:"status_path"`
	BufferSize     int64             `toml:"buffer_size"`
	WriteTimeoutMS int64             `toml:"write_timeout_ms"`
	Heartbeat      *HeartbeatConfig  `toml:"heartbeat"`
	NetLimit       *NetLimitConfig   `toml:"net_limit"`
	Auth           *ServerAuthConfig `toml:"auth"`
}

type TCPSinkOptions struct {
	Host       string           `toml:"host"`
	Port       int64            `toml:"port"`
	BufferSize int64            `toml:"buffer_size"`
	Heartbeat  *HeartbeatConfig `toml:"heartbeat"`
	NetLimit   *NetLimitConfig  `toml:"net_limit"`
}

type HeartbeatConfig struct {
	Enabled          bool   `toml:"enabled"`
	IntervalMS       int64  `toml:"interval_ms"`
	IncludeTimestamp bool   `toml:"include_timestamp"`
	IncludeStats     bool   `toml:"include_stats"`
	Format           string `toml:"format"` // "comment" or "json"
}

type NetLimitConfig struct {
	Enabled bool `toml:"enabled"`

	// Per-IP request rate
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BurstSize         int64   `toml:"burst_size"`

	// Concurrent stream limits
	MaxConnectionsPerIP int64 `toml:"max_connections_per_ip"`
	MaxConnectionsTotal int64 `toml:"max_connections_total"`

	// HTTP response when limited
	ResponseCode    int64  `toml:"response_code"`
	ResponseMessage string `toml:"response_message"`

	// IP access control lists (single IPs or CIDR)
	IPWhitelist []string `toml:"ip_whitelist"`
	IPBlacklist []string `toml:"ip_blacklist"`
}

// ServerAuthConfig protects the stream endpoint of an HTTP sink
type ServerAuthConfig struct {
	// "none", "basic", "token" or "jwt"
	Type string `toml:"type"`

	Basic *BasicAuthConfig `toml:"basic"`
	Token *TokenAuthConfig `toml:"token"`
	JWT   *JWTConfig       `toml:"jwt"`
}

type BasicAuthConfig struct {
	// Static users (for simple deployments)
	Users []BasicAuthUser `toml:"users"`

	// External auth file, "username:bcrypt-hash" per line
	UsersFile string `toml:"users_file"`

	// Realm for WWW-Authenticate header
	Realm string `toml:"realm"`
}

type BasicAuthUser struct {
	Username string `toml:"username"`
	// Password hash (bcrypt)
	PasswordHash string `toml:"password_hash"`
}

type TokenAuthConfig struct {
	// Static bearer tokens
	Tokens []string `toml:"tokens"`
}

type JWTConfig struct {
	// HMAC signing key
	SigningKey string `toml:"signing_key"`

	// Expected issuer
	Issuer string `toml:"issuer"`

	// Expected audience
	Audience string `toml:"audience"`
}
