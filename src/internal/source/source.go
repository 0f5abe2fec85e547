// FILE: logtrace/src/internal/source/source.go
package source

import (
	"time"

	"logtrace/src/internal/core"
)

// Source feeds a pipeline. Subscribe must be called before Start. Subscriber
// channels close when the source ends, through Stop or a failure; Err tells
// the two apart.
type Source interface {
	Subscribe() <-chan core.LogEntry
	Start() error
	Stop()
	GetStats() Stats

	// Err is the failure that ended the source early, nil while healthy
	Err() error
}

type Stats struct {
	Type           string
	TotalEntries   uint64
	DroppedEntries uint64
	StartTime      time.Time
	LastEntryTime  time.Time
	Details        map[string]any
}

// Map flattens the stats for status payloads.
func (s Stats) Map() map[string]any {
	return map[string]any{
		"type":            s.Type,
		"total_entries":   s.TotalEntries,
		"dropped_entries": s.DroppedEntries,
		"start_time":      s.StartTime,
		"last_entry_time": s.LastEntryTime,
		"details":         s.Details,
	}
}
