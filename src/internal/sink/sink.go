// FILE: logtrace/src/internal/sink/sink.go
package sink

import (
	"context"
	"encoding/json"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
)

// Sink consumes formatted entries from its Input channel between Start and Stop.
type Sink interface {
	Input() chan<- core.LogEntry
	Start(ctx context.Context) error
	Stop()
	GetStats() Stats
}

// Reasons reported to network clients when their stream ends.
const (
	EndShutdown     = "server_shutdown"
	EndSourceFailed = "source_failed"
	EndPipelineDied = "pipeline_failed"
)

// EndNotifier is implemented by sinks that tell their clients why the stream
// ended. SetEndReason must be called before Stop.
type EndNotifier interface {
	SetEndReason(reason string)
}

type Stats struct {
	Type              string
	TotalProcessed    uint64
	ActiveConnections int64
	StartTime         time.Time
	LastProcessed     time.Time
	Details           map[string]any
}

// Map flattens the stats for status payloads.
func (s Stats) Map() map[string]any {
	return map[string]any{
		"type":               s.Type,
		"total_processed":    s.TotalProcessed,
		"active_connections": s.ActiveConnections,
		"start_time":         s.StartTime,
		"last_processed":     s.LastProcessed,
		"details":            s.Details,
	}
}

// newHeartbeatEntry builds the keep-alive entry network sinks send to idle clients
func newHeartbeatEntry(source string, hb *config.HeartbeatConfig, startTime time.Time, active int64) core.LogEntry {
	now := time.Now()
	fields := map[string]any{"type": "heartbeat"}
	if hb != nil && hb.IncludeStats {
		fields["active_connections"] = active
		fields["uptime_seconds"] = int64(time.Since(startTime).Seconds())
	}
	if hb != nil && hb.IncludeTimestamp {
		fields["timestamp"] = now.UTC().Format(time.RFC3339)
	}

	fieldsJSON, _ := json.Marshal(fields)

	return core.LogEntry{
		Time:    now,
		Source:  source,
		Level:   core.LevelInfo.String(),
		Message: "heartbeat",
		Fields:  fieldsJSON,
	}
}
