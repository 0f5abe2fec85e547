// FILE: logtrace/src/internal/store/provider.go
package store

import (
	"context"
	"time"

	"logtrace/src/internal/core"
)

// Provider is the pull-only log store the stream engine polls.
// Implementations must be safe for concurrent read-only use.
type Provider interface {
	// Fetch returns records at or after since (seconds since boot) that
	// match pred, in store append order.
	Fetch(ctx context.Context, since float64, pred Predicate) ([]core.Record, error)

	// BootTime is the wall-clock instant the boot clock started.
	BootTime() time.Time

	// NowUptime is the current boot clock reading in seconds.
	NowUptime() float64
}

// Predicate is an equality filter over subsystem and category.
// Empty fields are unset; set fields are ANDed.
type Predicate struct {
	Subsystem string
	Category  string
}

// IsZero reports whether the predicate matches everything.
func (p Predicate) IsZero() bool {
	return p.Subsystem == "" && p.Category == ""
}

// Matches applies the predicate to a record.
func (p Predicate) Matches(r core.Record) bool {
	if p.Subsystem != "" && r.Subsystem != p.Subsystem {
		return false
	}
	if p.Category != "" && r.Category != p.Category {
		return false
	}
	return true
}

// SinceBoot converts a wall-clock timestamp to boot-relative seconds.
func SinceBoot(p Provider, t time.Time) float64 {
	return t.Sub(p.BootTime()).Seconds()
}
