// FILE: logtrace/src/internal/core/record.go
package core

import "time"

// Record is a raw entry as returned by a store provider.
// Providers build records once per fetch and never mutate them afterwards.
type Record struct {
	Timestamp  time.Time
	Level      Level
	Subsystem  string
	Category   string
	Process    string
	PID        *int
	ThreadID   *uint64
	Message    string
	ActivityID *uint64
	Raw        map[string]string
}

// IsSignpost reports whether the record was derived from a signpost marker.
func (r Record) IsSignpost() bool {
	_, ok := r.Raw[SignpostNameField]
	return ok
}
