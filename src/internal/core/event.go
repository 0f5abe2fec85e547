// FILE: logtrace/src/internal/core/event.go
package core

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Event is the public, immutable form of a record that leaves the engine.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Level      Level             `json:"level"`
	Subsystem  string            `json:"subsystem,omitempty"`
	Category   string            `json:"category,omitempty"`
	Process    string            `json:"process,omitempty"`
	PID        *int              `json:"pid,omitempty"`
	ThreadID   *uint64           `json:"thread_id,omitempty"`
	Message    string            `json:"message"`
	ActivityID *uint64           `json:"activity_id,omitempty"`
	Raw        map[string]string `json:"raw,omitempty"`
}

// NewEvent projects a record into an event. Thread and activity ids are
// cleared unless includeTraceIDs is set.
func NewEvent(r Record, includeTraceIDs bool) Event {
	ev := Event{
		Timestamp: r.Timestamp,
		Level:     r.Level,
		Subsystem: r.Subsystem,
		Category:  r.Category,
		Process:   r.Process,
		PID:       r.PID,
		Message:   r.Message,
		Raw:       r.Raw,
	}
	if includeTraceIDs {
		ev.ThreadID = r.ThreadID
		ev.ActivityID = r.ActivityID
	}
	return ev
}

// IsSignpost reports whether the event carries a signpost marker.
func (e Event) IsSignpost() bool {
	_, ok := e.Raw[SignpostNameField]
	return ok
}

// Fingerprint hashes the identifying fields of an event for dedup membership.
// Fields are NUL-separated so adjacent values cannot run together.
func Fingerprint(e Event) uint64 {
	var buf [8]byte
	d := xxhash.New()

	binary.LittleEndian.PutUint64(buf[:], uint64(e.Timestamp.UnixNano()))
	d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(e.Level))
	d.Write(buf[:])
	d.WriteString(e.Subsystem)
	d.Write([]byte{0})
	d.WriteString(e.Category)
	d.Write([]byte{0})
	d.WriteString(e.Message)
	d.Write([]byte{0})

	var activity uint64
	if e.ActivityID != nil {
		activity = *e.ActivityID
	}
	binary.LittleEndian.PutUint64(buf[:], activity)
	d.Write(buf[:])

	return d.Sum64()
}

// ToLogEntry converts an event into a pipeline entry. The source is the
// subsystem, falling back to the process name.
func ToLogEntry(e Event) LogEntry {
	source := e.Subsystem
	if source == "" {
		source = e.Process
	}

	fields := make(map[string]any, 8)
	if e.Category != "" {
		fields["category"] = e.Category
	}
	if e.Process != "" {
		fields["process"] = e.Process
	}
	if e.PID != nil {
		fields["pid"] = *e.PID
	}
	if e.ThreadID != nil {
		fields["thread_id"] = *e.ThreadID
	}
	if e.ActivityID != nil {
		fields["activity_id"] = *e.ActivityID
	}
	for k, v := range e.Raw {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}

	entry := LogEntry{
		Time:    e.Timestamp,
		Source:  source,
		Level:   e.Level.String(),
		Message: e.Message,
		RawSize: int64(len(e.Message)),
	}
	if len(fields) > 0 {
		if data, err := json.Marshal(fields); err == nil {
			entry.Fields = data
		}
	}
	return entry
}
