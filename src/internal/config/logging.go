// FILE: logtrace/src/internal/config/logging.go
package config

// LogConfig controls LogTrace's own diagnostics, not the traced journal stream.
type LogConfig struct {
	Output  string            `toml:"output"` // file, stdout, stderr, split, all or none
	Level   string            `toml:"level"`  // debug, info, warn or error
	File    *LogFileConfig    `toml:"file"`
	Console *LogConsoleConfig `toml:"console"`
}

// LogFileConfig applies when Output is "file" or "all".
type LogFileConfig struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	RetentionHours float64 `toml:"retention_hours"` // 0 keeps files forever
}

// LogConsoleConfig applies when Output is a console mode or "all".
// Target "split" sends debug and info to stdout, the rest to stderr.
type LogConsoleConfig struct {
	Target string `toml:"target"`
	Format string `toml:"format"` // txt or json
}

func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Output: "stderr",
		Level:  "info",
		File: &LogFileConfig{
			Directory:      "./log",
			Name:           "logtrace",
			MaxSizeMB:      100,
			MaxTotalSizeMB: 1000,
			RetentionHours: 24 * 7,
		},
		Console: &LogConsoleConfig{
			Target: "stderr",
			Format: "txt",
		},
	}
}

// WritesFile reports whether diagnostics go to rotated files.
func (c *LogConfig) WritesFile() bool {
	return c.Output == "file" || c.Output == "all"
}

// ConsoleTarget returns the console stream diagnostics are written to, or ""
// when console output is off.
func (c *LogConfig) ConsoleTarget() string {
	switch c.Output {
	case "stdout", "stderr", "split":
		return c.Output
	case "all":
		if c.Console != nil && c.Console.Target != "" {
			return c.Console.Target
		}
		return "stderr"
	default:
		return ""
	}
}
