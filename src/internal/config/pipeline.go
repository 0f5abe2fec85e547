// FILE: logtrace/src/internal/config/pipeline.go
package config

// PipelineConfig represents one trace stream and its delivery targets
type PipelineConfig struct {
	// Pipeline identifier (used in logs and status)
	Name string `toml:"name"`

	// Log store subscription
	Trace *TraceConfig `toml:"trace"`

	// Pipeline-level rate limiting
	RateLimit *RateLimitConfig `toml:"rate_limit"`

	// Filter chain, applied in order
	Filters []FilterConfig `toml:"filters"`

	// Output format shared by all sinks
	Format *FormatConfig `toml:"format"`

	// Output sinks for this pipeline
	Sinks []SinkConfig `toml:"sinks"`
}

// TraceConfig configures the log store subscription feeding a pipeline
type TraceConfig struct {
	// Equality filters, pushed down to the store. Empty means unset.
	Subsystem string `toml:"subsystem"`
	Category  string `toml:"category"`

	// Minimum level: "debug", "info", "notice", "error", "fault"
	MinimumLevel string `toml:"minimum_level"`

	PollIntervalMS   int64 `toml:"poll_interval_ms"`
	LookbackMS       int64 `toml:"lookback_ms"`
	MaxEventsPerPoll int64 `toml:"max_events_per_poll"`
	DedupeWindow     int64 `toml:"dedupe_window"`

	IncludeSignposts bool `toml:"include_signposts"`
	IncludeTraceIDs  bool `toml:"include_trace_ids"`
	EnabledInRelease bool `toml:"enabled_in_release"`

	// Journal provider: "process" or "system"
	Scope          string `toml:"scope"`
	SubsystemField string `toml:"subsystem_field"`
	CategoryField  string `toml:"category_field"`
	JournalctlPath string `toml:"journalctl_path"`

	// Subscriber channel capacity
	BufferSize int64 `toml:"buffer_size"`
}

// DefaultTraceConfig mirrors the stream engine defaults
func DefaultTraceConfig() *TraceConfig {
	return &TraceConfig{
		MinimumLevel:     "debug",
		PollIntervalMS:   250,
		LookbackMS:       2000,
		MaxEventsPerPoll: 2000,
		DedupeWindow:     4096,
		IncludeTraceIDs:  true,
		Scope:            "process",
		SubsystemField:   "SYSLOG_IDENTIFIER",
		CategoryField:    "CATEGORY",
		JournalctlPath:   "journalctl",
		BufferSize:       1000,
	}
}

// Filter types and logic
const (
	FilterTypeInclude = "include"
	FilterTypeExclude = "exclude"
	FilterLogicOr     = "or"
	FilterLogicAnd    = "and"
)

// FilterConfig is a regex filter over one entry attribute
type FilterConfig struct {
	// "include" keeps matches, "exclude" drops them
	Type string `toml:"type"`
	// "or" needs any pattern to match, "and" needs all
	Logic    string   `toml:"logic"`
	Patterns []string `toml:"patterns"`
	// Matched text: "" for "<source> <level> <message>", "message", "source",
	// "level", or any structured field such as "category" or "process"
	Field string `toml:"field"`
}

// RateLimitConfig throttles a whole pipeline. Rate 0 disables it.
type RateLimitConfig struct {
	Rate   float64 `toml:"rate"`   // entries per second
	Burst  float64 `toml:"burst"`  // defaults to Rate
	Policy string  `toml:"policy"` // "pass" disables, "drop" enforces

	// Entries larger than this are dropped regardless of tokens, 0 = unlimited
	MaxEntrySizeBytes int64 `toml:"max_entry_size_bytes"`

	// Entries at or above this level bypass the limiter ("error" keeps faults
	// flowing during a debug storm). Empty exempts nothing.
	ExemptLevel string `toml:"exempt_level"`
}

// FormatConfig selects and configures the pipeline formatter
type FormatConfig struct {
	// "json", "txt" or "raw"
	Type string `toml:"type"`

	JSONFormatOptions *JSONFormatterOptions `toml:"json"`
	TextFormatOptions *TextFormatterOptions `toml:"txt"`
	RawFormatOptions  *RawFormatterOptions  `toml:"raw"`
}

type JSONFormatterOptions struct {
	Pretty         bool   `toml:"pretty"`
	TimestampField string `toml:"timestamp_field"`
	LevelField     string `toml:"level_field"`
	MessageField   string `toml:"message_field"`
	SourceField    string `toml:"source_field"`

	// Nests structured journald fields under this key; empty merges them into
	// the top-level object
	FieldsKey string `toml:"fields_key"`
}

type TextFormatterOptions struct {
	Template        string `toml:"template"`
	TimestampFormat string `toml:"timestamp_format"`
	// "auto" colours levels when the sink writes to a terminal, "always" or "never"
	Color string `toml:"color"`
}

type RawFormatterOptions struct {
	// Append the structured fields after the message
	AddFields bool `toml:"add_fields"`
}
