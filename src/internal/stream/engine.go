// FILE: logtrace/src/internal/stream/engine.go
package stream

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"logtrace/src/internal/core"
	"logtrace/src/internal/dedupe"
	"logtrace/src/internal/store"

	"github.com/lixenwraith/log"
)

// EmitFunc receives each event the engine lets through.
type EmitFunc func(core.Event)

// DeliverFunc is EmitFunc for consumers that can refuse an event. It returns
// false when the event was not taken, which ends the poll in progress.
type DeliverFunc func(core.Event) bool

// Engine turns a poll-only store into an event stream. One Run at a time;
// the cursor and dedup ring belong to that run.
type Engine struct {
	config   Config
	provider store.Provider
	logger   *log.Logger

	running atomic.Bool

	// Statistics
	polls               atomic.Uint64
	fetched             atomic.Uint64
	emitted             atomic.Uint64
	filteredLevel       atomic.Uint64
	filteredSignpost    atomic.Uint64
	duplicates          atomic.Uint64
	droppedBackpressure atomic.Uint64
	cursorBits          atomic.Uint64 // float64 bits
	lastPoll            atomic.Value  // time.Time
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Polls               uint64
	Fetched             uint64
	Emitted             uint64
	FilteredByLevel     uint64
	FilteredSignposts   uint64
	Duplicates          uint64
	DroppedBackpressure uint64
	Cursor              float64
	LastPoll            time.Time
}

// New creates an engine. The config must already be validated.
func New(cfg Config, provider store.Provider, logger *log.Logger) *Engine {
	e := &Engine{
		config:   cfg,
		provider: provider,
		logger:   logger,
	}
	e.lastPoll.Store(time.Time{})
	return e
}

var errAlreadyRunning = errors.New("engine already running")

// Run polls until ctx is cancelled or a fetch fails. Cancellation returns
// nil; a failed fetch returns an error matching core.ErrIterationFailed.
func (e *Engine) Run(ctx context.Context, emit EmitFunc) error {
	return e.RunDeliver(ctx, func(ev core.Event) bool {
		emit(ev)
		return true
	})
}

// RunDeliver is Run with an acknowledging callback. Only events the
// callback accepted count as emitted.
func (e *Engine) RunDeliver(ctx context.Context, deliver DeliverFunc) error {
	if !e.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer e.running.Store(false)

	cursor := math.Max(0, e.provider.NowUptime()-e.config.Lookback.Seconds())
	e.cursorBits.Store(math.Float64bits(cursor))
	ring := dedupe.New(e.config.DedupeWindow)
	pred := e.config.Predicate()
	maxEvents := max(0, e.config.MaxEventsPerPoll)

	e.logger.Debug("msg", "Stream engine started",
		"component", "stream_engine",
		"cursor", cursor,
		"subsystem", e.config.Subsystem,
		"category", e.config.Category,
		"poll_interval", e.config.PollInterval,
		"max_events_per_poll", maxEvents,
		"dedupe_window", e.config.DedupeWindow)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for ctx.Err() == nil {
		records, err := e.provider.Fetch(ctx, cursor, pred)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			e.logger.Error("msg", "Log store fetch failed",
				"component", "stream_engine",
				"cursor", cursor,
				"error", err)
			return core.NewTraceError(core.ErrIterationFailed, err)
		}
		e.polls.Add(1)
		e.fetched.Add(uint64(len(records)))
		e.lastPoll.Store(time.Now())

		emitted, processed, halted := e.process(ctx, records, maxEvents, ring, deliver)

		// Records left behind by cancellation are not backpressure
		if dropped := len(records) - processed; !halted && dropped > 0 {
			e.droppedBackpressure.Add(uint64(dropped))
			e.logger.Debug("msg", "Backpressure: per-poll cap reached, discarding remaining records",
				"component", "stream_engine",
				"emitted", emitted,
				"fetched", len(records),
				"max_events_per_poll", maxEvents,
				"discarded", dropped)
		}

		cursor = e.advance(cursor, records)
		e.cursorBits.Store(math.Float64bits(cursor))

		if ctx.Err() != nil {
			break
		}

		if timer == nil {
			timer = time.NewTimer(e.config.PollInterval)
		} else {
			timer.Reset(e.config.PollInterval)
		}
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	e.logger.Debug("msg", "Stream engine stopped",
		"component", "stream_engine",
		"cursor", cursor,
		"emitted", e.emitted.Load())
	return nil
}

// process walks one poll's records in order and returns how many events
// were emitted and how many records were examined before the cap stopped it.
// halted is set when cancellation or a refused delivery cut the poll short.
func (e *Engine) process(ctx context.Context, records []core.Record, maxEvents int, ring *dedupe.RingBuffer, deliver DeliverFunc) (emitted, processed int, halted bool) {
	if maxEvents == 0 {
		return 0, 0, false
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			return emitted, processed, true
		}
		processed++

		if rec.Level < e.config.MinimumLevel {
			e.filteredLevel.Add(1)
			continue
		}
		if !e.config.IncludeSignposts && rec.IsSignpost() {
			e.filteredSignpost.Add(1)
			continue
		}

		ev := core.NewEvent(rec, e.config.IncludeTraceIDs)
		if ring.ContainsOrInsert(core.Fingerprint(ev)) {
			e.duplicates.Add(1)
			continue
		}

		if !deliver(ev) {
			return emitted, processed, true
		}
		emitted++
		e.emitted.Add(1)

		if emitted >= maxEvents {
			break
		}
	}
	return emitted, processed, false
}

// advance moves the cursor past the last fetched record, or to just behind
// "now" when the poll was empty. The cursor never moves backwards.
func (e *Engine) advance(cursor float64, records []core.Record) float64 {
	if n := len(records); n > 0 {
		next := store.SinceBoot(e.provider, records[n-1].Timestamp) + core.CursorEpsilon
		return math.Max(cursor, next)
	}
	return math.Max(cursor, e.provider.NowUptime()-core.CursorNowBackoff)
}

// Cursor returns the cursor of the current (or last) run.
func (e *Engine) Cursor() float64 {
	return math.Float64frombits(e.cursorBits.Load())
}

// Stats returns a snapshot of the engine counters. Safe to call while running.
func (e *Engine) Stats() Stats {
	lastPoll, _ := e.lastPoll.Load().(time.Time)
	return Stats{
		Polls:               e.polls.Load(),
		Fetched:             e.fetched.Load(),
		Emitted:             e.emitted.Load(),
		FilteredByLevel:     e.filteredLevel.Load(),
		FilteredSignposts:   e.filteredSignpost.Load(),
		Duplicates:          e.duplicates.Load(),
		DroppedBackpressure: e.droppedBackpressure.Load(),
		Cursor:              e.Cursor(),
		LastPoll:            lastPoll,
	}
}

// GetStats returns the snapshot in the map form used by status reporting.
func (e *Engine) GetStats() map[string]any {
	s := e.Stats()
	return map[string]any{
		"polls":                s.Polls,
		"fetched":              s.Fetched,
		"emitted":              s.Emitted,
		"filtered_by_level":    s.FilteredByLevel,
		"filtered_signposts":   s.FilteredSignposts,
		"duplicates":           s.Duplicates,
		"dropped_backpressure": s.DroppedBackpressure,
		"cursor":               s.Cursor,
		"last_poll":            s.LastPoll,
	}
}
