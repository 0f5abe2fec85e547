// FILE: logtrace/src/internal/config/config.go
package config

// Config is the root of the LogTrace configuration tree.
type Config struct {
	// Top-level flags for application control
	ShowVersion    bool `toml:"version"`
	Quiet          bool `toml:"quiet"`
	StatusReporter bool `toml:"status_reporter"`

	// Runtime behavior
	ConfigFile string `toml:"config_file"`

	// Internal logging of the service itself
	Logging *LogConfig `toml:"logging"`

	// Trace pipelines
	Pipelines []PipelineConfig `toml:"pipelines"`
}
