// FILE: logtrace/src/internal/config/validation.go
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"logtrace/src/internal/core"

	lconfig "github.com/lixenwraith/config"
)

// Default text template and timestamp layout
const (
	DefaultTextTemplate    = "[{{.Timestamp | FmtTime}}] [{{.Level | ToUpper}}] {{.Source}} - {{.Message}}{{ if .Fields }} {{.Fields}}{{ end }}"
	DefaultTimestampFormat = time.RFC3339
)

// validateConfig is the centralized validator for the entire configuration.
// It also fills in defaults for omitted nested blocks.
func validateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if len(cfg.Pipelines) == 0 {
		return fmt.Errorf("no pipelines configured")
	}

	if cfg.Logging == nil {
		cfg.Logging = DefaultLogConfig()
	}
	if err := validateLogConfig(cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	// Ports are claimed across pipelines, names must be unique
	allPorts := make(map[int64]string)
	pipelineNames := make(map[string]bool)

	for i := range cfg.Pipelines {
		if err := validatePipeline(i, &cfg.Pipelines[i], pipelineNames, allPorts); err != nil {
			return err
		}
	}

	return nil
}

// Validate runs the full validation on an already assembled configuration.
func (c *Config) Validate() error {
	return validateConfig(c)
}

func validateLogConfig(cfg *LogConfig) error {
	switch cfg.Output {
	case "file", "stdout", "stderr", "split", "all", "none":
	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Output)
	}

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	if c := cfg.Console; c != nil {
		switch c.Target {
		case "", "stdout", "stderr", "split":
		default:
			return fmt.Errorf("invalid console target: %s", c.Target)
		}
		if c.Format != "" && c.Format != "txt" && c.Format != "json" {
			return fmt.Errorf("invalid console format: %s", c.Format)
		}
	}

	if cfg.WritesFile() && cfg.File != nil {
		if err := lconfig.NonEmpty(cfg.File.Directory); err != nil {
			return fmt.Errorf("file logging requires a directory")
		}
	}

	return nil
}

func validatePipeline(index int, p *PipelineConfig, pipelineNames map[string]bool, allPorts map[int64]string) error {
	if err := lconfig.NonEmpty(p.Name); err != nil {
		return fmt.Errorf("pipeline %d: missing name", index)
	}

	if pipelineNames[p.Name] {
		return fmt.Errorf("pipeline %d: duplicate name '%s'", index, p.Name)
	}
	pipelineNames[p.Name] = true

	if p.Trace == nil {
		p.Trace = DefaultTraceConfig()
	}
	if err := validateTrace(p.Name, p.Trace); err != nil {
		return err
	}

	if err := validateRateLimit(p.Name, p.RateLimit); err != nil {
		return err
	}

	for j := range p.Filters {
		if err := validateFilter(p.Name, j, &p.Filters[j]); err != nil {
			return err
		}
	}

	if err := validateFormatterConfig(p); err != nil {
		return fmt.Errorf("pipeline '%s': %w", p.Name, err)
	}

	if len(p.Sinks) == 0 {
		return fmt.Errorf("pipeline '%s': no sinks specified", p.Name)
	}

	for j := range p.Sinks {
		if err := validateSinkConfig(p.Name, j, &p.Sinks[j], allPorts); err != nil {
			return err
		}
	}

	return nil
}

func validateTrace(pipelineName string, t *TraceConfig) error {
	if _, err := core.ParseLevel(t.MinimumLevel); err != nil {
		return fmt.Errorf("pipeline '%s' trace: %w", pipelineName, err)
	}

	if t.PollIntervalMS < 1 {
		return fmt.Errorf("pipeline '%s' trace: poll_interval_ms must be positive", pipelineName)
	}
	if t.LookbackMS < 0 {
		return fmt.Errorf("pipeline '%s' trace: lookback_ms cannot be negative", pipelineName)
	}
	if t.MaxEventsPerPoll < 0 {
		return fmt.Errorf("pipeline '%s' trace: max_events_per_poll cannot be negative", pipelineName)
	}
	if t.DedupeWindow < 0 {
		return fmt.Errorf("pipeline '%s' trace: dedupe_window cannot be negative", pipelineName)
	}

	switch t.Scope {
	case "":
		t.Scope = "process"
	case "process", "system":
	default:
		return fmt.Errorf("pipeline '%s' trace: invalid scope '%s' (must be 'process' or 'system')",
			pipelineName, t.Scope)
	}

	if t.BufferSize < 1 {
		t.BufferSize = core.DefaultBufferSize
	}

	return nil
}

// soleBlock returns the name of the only non-nil option block.
func soleBlock(blocks map[string]bool) (string, int) {
	var name string
	count := 0
	for k, set := range blocks {
		if set {
			name = k
			count++
		}
	}
	return name, count
}

func validateSinkConfig(pipelineName string, index int, s *SinkConfig, allPorts map[int64]string) error {
	if err := lconfig.NonEmpty(s.Type); err != nil {
		return fmt.Errorf("pipeline '%s' sink[%d]: missing type", pipelineName, index)
	}

	block, count := soleBlock(map[string]bool{
		"console": s.Console != nil,
		"http":    s.HTTP != nil,
		"tcp":     s.TCP != nil,
	})
	switch {
	case count == 0:
		return fmt.Errorf("pipeline '%s' sink[%d]: no configuration provided for type '%s'",
			pipelineName, index, s.Type)
	case count > 1:
		return fmt.Errorf("pipeline '%s' sink[%d]: multiple configurations provided, only one allowed",
			pipelineName, index)
	case block != s.Type:
		return fmt.Errorf("pipeline '%s' sink[%d]: type mismatch - type is '%s' but config is for '%s'",
			pipelineName, index, s.Type, block)
	}

	where := fmt.Sprintf("pipeline '%s' sink[%d]", pipelineName, index)
	switch s.Type {
	case "console":
		return validateConsoleSink(where, s.Console)

	case "http":
		o := s.HTTP
		if err := validateListener(where, "http", o.Host, o.Port, &o.BufferSize, o.Heartbeat, o.NetLimit, allPorts); err != nil {
			return err
		}
		return validateHTTPSink(where, pipelineName, o)

	case "tcp":
		o := s.TCP
		return validateListener(where, "tcp", o.Host, o.Port, &o.BufferSize, o.Heartbeat, o.NetLimit, allPorts)

	default:
		return fmt.Errorf("%s: unknown type '%s'", where, s.Type)
	}
}

func validateConsoleSink(where string, opts *ConsoleSinkOptions) error {
	switch opts.Target {
	case "":
		opts.Target = "stdout"
	case "stdout", "stderr", "split":
	default:
		return fmt.Errorf("%s: invalid console target '%s'", where, opts.Target)
	}
	return validateBufferSize(where, &opts.BufferSize)
}

func validateBufferSize(where string, size *int64) error {
	if *size == 0 {
		*size = core.DefaultBufferSize
	}
	if *size < 1 {
		return fmt.Errorf("%s: buffer_size must be positive", where)
	}
	return nil
}

// validateListener covers what the network sinks share. Each port may be
// claimed once across all pipelines.
func validateListener(where, kind, host string, port int64, bufferSize *int64,
	hb *HeartbeatConfig, nl *NetLimitConfig, allPorts map[int64]string) error {
	if err := lconfig.Port(port); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	if owner, taken := allPorts[port]; taken {
		return fmt.Errorf("%s: port %d already used by %s", where, port, owner)
	}
	allPorts[port] = where + " (" + kind + ")"

	if host != "" {
		if err := lconfig.IPAddress(host); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}

	if err := validateBufferSize(where, bufferSize); err != nil {
		return err
	}
	if hb != nil {
		if err := validateHeartbeat(where, hb); err != nil {
			return err
		}
	}
	if nl != nil {
		if err := validateNetLimit(where, nl); err != nil {
			return err
		}
	}
	return nil
}

func validateHTTPSink(where, pipelineName string, opts *HTTPSinkOptions) error {
	if opts.StreamPath == "" {
		opts.StreamPath = "/stream"
	}
	if opts.StatusPath == "" {
		opts.StatusPath = "/status"
	}
	for _, path := range []string{opts.StreamPath, opts.StatusPath} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("%s: path '%s' must start with /", where, path)
		}
	}
	if opts.StreamPath == opts.StatusPath {
		return fmt.Errorf("%s: stream_path and status_path must differ", where)
	}

	if opts.WriteTimeoutMS < 0 {
		return fmt.Errorf("%s: write_timeout_ms cannot be negative", where)
	}

	if opts.Auth != nil {
		return validateServerAuth(pipelineName, opts.Auth)
	}
	return nil
}

// validateFormatterConfig validates formatter configuration and fills defaults
func validateFormatterConfig(p *PipelineConfig) error {
	if p.Format == nil {
		p.Format = &FormatConfig{
			Type: "raw",
		}
	} else if p.Format.Type == "" {
		p.Format.Type = "raw" // Default
	}

	switch p.Format.Type {
	case "raw":
		if p.Format.RawFormatOptions == nil {
			p.Format.RawFormatOptions = &RawFormatterOptions{}
		}

	case "txt":
		if p.Format.TextFormatOptions == nil {
			p.Format.TextFormatOptions = &TextFormatterOptions{}
		}
		opts := p.Format.TextFormatOptions
		if opts.Template == "" {
			opts.Template = DefaultTextTemplate
		}
		if opts.TimestampFormat == "" {
			opts.TimestampFormat = DefaultTimestampFormat
		}
		switch opts.Color {
		case "":
			opts.Color = "auto"
		case "auto", "always", "never":
		default:
			return fmt.Errorf("invalid txt color mode '%s' (must be 'auto', 'always' or 'never')", opts.Color)
		}

	case "json":
		if p.Format.JSONFormatOptions == nil {
			p.Format.JSONFormatOptions = &JSONFormatterOptions{}
		}
		opts := p.Format.JSONFormatOptions
		if opts.TimestampField == "" {
			opts.TimestampField = "timestamp"
		}
		if opts.LevelField == "" {
			opts.LevelField = "level"
		}
		if opts.MessageField == "" {
			opts.MessageField = "message"
		}
		if opts.SourceField == "" {
			opts.SourceField = "source"
		}

	default:
		return fmt.Errorf("unknown format type '%s'", p.Format.Type)
	}

	return nil
}

func validateNetLimit(where string, nl *NetLimitConfig) error {
	if nl.RequestsPerSecond < 0 || nl.BurstSize < 0 {
		return fmt.Errorf("%s: net_limit rate and burst cannot be negative", where)
	}
	if nl.MaxConnectionsPerIP < 0 || nl.MaxConnectionsTotal < 0 {
		return fmt.Errorf("%s: connection limits cannot be negative", where)
	}

	if nl.ResponseCode == 0 {
		nl.ResponseCode = 429
	}
	if nl.ResponseCode < 400 || nl.ResponseCode > 599 {
		return fmt.Errorf("%s: response_code must be a 4xx or 5xx status", where)
	}
	return nil
}

// validateHeartbeat ignores disabled heartbeats entirely.
func validateHeartbeat(where string, hb *HeartbeatConfig) error {
	if !hb.Enabled {
		return nil
	}
	if hb.IntervalMS < 1000 {
		return fmt.Errorf("%s: heartbeat interval must be at least 1000ms", where)
	}

	switch hb.Format {
	case "":
		hb.Format = "comment"
	case "comment", "json":
	default:
		return fmt.Errorf("%s: heartbeat format must be 'json' or 'comment': %s", where, hb.Format)
	}
	return nil
}

func validateServerAuth(pipelineName string, auth *ServerAuthConfig) error {
	if auth.Type == "" || auth.Type == "none" {
		return nil
	}

	block, count := soleBlock(map[string]bool{
		"basic": auth.Basic != nil,
		"token": auth.Token != nil,
		"jwt":   auth.JWT != nil,
	})
	switch {
	case count == 0:
		return fmt.Errorf("pipeline '%s': auth type '%s' specified but config missing", pipelineName, auth.Type)
	case count > 1:
		return fmt.Errorf("pipeline '%s': multiple auth configurations provided", pipelineName)
	case block != auth.Type:
		return fmt.Errorf("pipeline '%s': auth type mismatch - type is '%s' but config is for '%s'",
			pipelineName, auth.Type, block)
	}

	switch auth.Type {
	case "basic":
		if len(auth.Basic.Users) == 0 && auth.Basic.UsersFile == "" {
			return fmt.Errorf("pipeline '%s': basic auth requires at least one user", pipelineName)
		}
		for i, user := range auth.Basic.Users {
			if lconfig.NonEmpty(user.Username) != nil || lconfig.NonEmpty(user.PasswordHash) != nil {
				return fmt.Errorf("pipeline '%s': basic auth user[%d] needs username and password_hash", pipelineName, i)
			}
		}
	case "token":
		if len(auth.Token.Tokens) == 0 {
			return fmt.Errorf("pipeline '%s': token auth requires at least one token", pipelineName)
		}
	case "jwt":
		if len(auth.JWT.SigningKey) < 32 {
			return fmt.Errorf("pipeline '%s': jwt signing_key must be at least 32 bytes", pipelineName)
		}
	default:
		return fmt.Errorf("pipeline '%s': unknown auth type '%s'", pipelineName, auth.Type)
	}

	return nil
}

func validateRateLimit(pipelineName string, cfg *RateLimitConfig) error {
	if cfg == nil {
		return nil
	}

	if cfg.Rate < 0 {
		return fmt.Errorf("pipeline '%s': rate limit rate cannot be negative", pipelineName)
	}

	if cfg.Burst < 0 {
		return fmt.Errorf("pipeline '%s': rate limit burst cannot be negative", pipelineName)
	}

	if cfg.MaxEntrySizeBytes < 0 {
		return fmt.Errorf("pipeline '%s': max entry size bytes cannot be negative", pipelineName)
	}

	switch strings.ToLower(cfg.Policy) {
	case "", "pass", "drop":
	default:
		return fmt.Errorf("pipeline '%s': invalid rate limit policy '%s' (must be 'pass' or 'drop')",
			pipelineName, cfg.Policy)
	}

	if cfg.ExemptLevel != "" {
		if _, err := core.ParseLevel(cfg.ExemptLevel); err != nil {
			return fmt.Errorf("pipeline '%s': rate limit exempt_level: %w", pipelineName, err)
		}
	}

	return nil
}

func validateFilter(pipelineName string, filterIndex int, cfg *FilterConfig) error {
	switch cfg.Type {
	case FilterTypeInclude, FilterTypeExclude, "":
	default:
		return fmt.Errorf("pipeline '%s' filter[%d]: invalid type '%s' (must be 'include' or 'exclude')",
			pipelineName, filterIndex, cfg.Type)
	}

	switch cfg.Logic {
	case FilterLogicOr, FilterLogicAnd, "":
	default:
		return fmt.Errorf("pipeline '%s' filter[%d]: invalid logic '%s' (must be 'or' or 'and')",
			pipelineName, filterIndex, cfg.Logic)
	}

	if strings.ContainsAny(cfg.Field, " .") {
		return fmt.Errorf("pipeline '%s' filter[%d]: invalid field '%s'",
			pipelineName, filterIndex, cfg.Field)
	}

	for i, pattern := range cfg.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("pipeline '%s' filter[%d] pattern[%d] '%s': invalid regex: %w",
				pipelineName, filterIndex, i, pattern, err)
		}
	}

	return nil
}
