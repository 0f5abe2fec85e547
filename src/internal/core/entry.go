// FILE: logtrace/src/internal/core/entry.go
package core

import (
	"encoding/json"
	"time"
)

// LogEntry is the pipeline representation of a log line handed to filters, limiters and sinks.
type LogEntry struct {
	Time    time.Time       `json:"time"`
	Source  string          `json:"source"`
	Level   string          `json:"level,omitempty"`
	Message string          `json:"message"`
	Fields  json.RawMessage `json:"fields,omitempty"`
	RawSize int64           `json:"-"`
}
