// FILE: logtrace/src/internal/format/format.go
package format

import (
	"fmt"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for transforming a LogEntry into a byte slice.
type Formatter interface {
	// Format takes a LogEntry and returns the formatted entry as a byte slice.
	Format(entry core.LogEntry) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// NewFormatter creates a Formatter from the pipeline format block. A nil block selects raw.
func NewFormatter(cfg *config.FormatConfig, logger *log.Logger) (Formatter, error) {
	if cfg == nil {
		cfg = &config.FormatConfig{Type: "raw"}
	}

	switch cfg.Type {
	case "json":
		return NewJSONFormatter(cfg.JSONFormatOptions, logger)
	case "txt":
		return NewTextFormatter(cfg.TextFormatOptions, logger)
	case "raw", "":
		return NewRawFormatter(cfg.RawFormatOptions, logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", cfg.Type)
	}
}
