// FILE: logtrace/src/internal/store/memory.go
package store

import (
	"context"
	"sync"
	"time"

	"logtrace/src/internal/core"
)

// MemoryProvider is a deterministic in-memory store. It records every
// cursor it is queried with so callers can assert on cursor movement.
type MemoryProvider struct {
	mu       sync.Mutex
	boot     time.Time
	uptime   float64
	records  []core.Record
	cursors  []float64
	failWith error
}

// NewMemoryProvider creates a store whose boot clock started at boot and
// currently reads uptime seconds.
func NewMemoryProvider(boot time.Time, uptime float64, records ...core.Record) *MemoryProvider {
	return &MemoryProvider{
		boot:    boot,
		uptime:  uptime,
		records: append([]core.Record(nil), records...),
	}
}

// Fetch returns matching records whose boot-relative timestamp is >= since.
func (m *MemoryProvider) Fetch(ctx context.Context, since float64, pred Predicate) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cursors = append(m.cursors, since)
	if m.failWith != nil {
		return nil, m.failWith
	}

	var out []core.Record
	for _, r := range m.records {
		if r.Timestamp.Sub(m.boot).Seconds() < since {
			continue
		}
		if !pred.Matches(r) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryProvider) BootTime() time.Time {
	return m.boot
}

func (m *MemoryProvider) NowUptime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uptime
}

// Append adds records to the end of the store.
func (m *MemoryProvider) Append(records ...core.Record) {
	m.mu.Lock()
	m.records = append(m.records, records...)
	m.mu.Unlock()
}

// SetUptime moves the boot clock.
func (m *MemoryProvider) SetUptime(uptime float64) {
	m.mu.Lock()
	m.uptime = uptime
	m.mu.Unlock()
}

// FailWith makes every subsequent Fetch return err. Nil clears it.
func (m *MemoryProvider) FailWith(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

// Cursors returns the since values Fetch has been called with, in order.
func (m *MemoryProvider) Cursors() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.cursors...)
}
