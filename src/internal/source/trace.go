// FILE: logtrace/src/internal/source/trace.go
package source

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/store"
	"logtrace/src/internal/stream"
	"logtrace/src/internal/trace"

	"github.com/lixenwraith/log"
)

var _ Source = (*TraceSource)(nil)

// TraceSource feeds a pipeline from a live log store subscription.
type TraceSource struct {
	config *config.TraceConfig
	tracer *trace.Tracer
	logger *log.Logger

	subscribers []chan core.LogEntry
	bufferSize  int64

	mu      sync.Mutex
	sub     *trace.Subscription
	started bool
	stopped bool
	wg      sync.WaitGroup
	closed  sync.Once

	totalEntries   atomic.Uint64
	droppedEntries atomic.Uint64
	startTime      time.Time
	lastEntryTime  atomic.Value // time.Time
	failure        atomic.Value // error
}

// NewTraceSource builds the tracer for cfg. Extra options are applied after the
// ones derived from cfg, so callers can inject a provider.
func NewTraceSource(cfg *config.TraceConfig, logger *log.Logger, opts ...trace.Option) (*TraceSource, error) {
	if cfg == nil {
		cfg = config.DefaultTraceConfig()
	}

	streamCfg, err := StreamConfig(cfg)
	if err != nil {
		return nil, err
	}

	all := append([]trace.Option{
		trace.WithLogger(logger),
		trace.WithJournalOptions(JournalOptions(cfg)),
	}, opts...)

	tracer, err := trace.New(streamCfg, all...)
	if err != nil {
		return nil, err
	}

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = core.DefaultBufferSize
	}

	s := &TraceSource{
		config:     cfg,
		tracer:     tracer,
		logger:     logger,
		bufferSize: bufferSize,
	}
	s.lastEntryTime.Store(time.Time{})
	return s, nil
}

// StreamConfig converts the TOML trace block into engine settings.
func StreamConfig(cfg *config.TraceConfig) (stream.Config, error) {
	level, err := core.ParseLevel(cfg.MinimumLevel)
	if err != nil {
		return stream.Config{}, fmt.Errorf("trace minimum_level: %w", err)
	}

	sc := stream.Config{
		Subsystem:        cfg.Subsystem,
		Category:         cfg.Category,
		MinimumLevel:     level,
		PollInterval:     time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		Lookback:         time.Duration(cfg.LookbackMS) * time.Millisecond,
		MaxEventsPerPoll: int(cfg.MaxEventsPerPoll),
		DedupeWindow:     int(cfg.DedupeWindow),
		IncludeSignposts: cfg.IncludeSignposts,
		IncludeTraceIDs:  cfg.IncludeTraceIDs,
		EnabledInRelease: cfg.EnabledInRelease,
	}
	if err := sc.Validate(); err != nil {
		return stream.Config{}, err
	}
	return sc, nil
}

// JournalOptions returns the journald provider settings of cfg, defaulting unset fields.
func JournalOptions(cfg *config.TraceConfig) store.JournalOptions {
	opts := store.DefaultJournalOptions()
	if cfg.JournalctlPath != "" {
		opts.Path = cfg.JournalctlPath
	}
	if cfg.Scope != "" {
		opts.Scope = cfg.Scope
	}
	if cfg.SubsystemField != "" {
		opts.SubsystemField = cfg.SubsystemField
	}
	if cfg.CategoryField != "" {
		opts.CategoryField = cfg.CategoryField
	}
	return opts
}

func (s *TraceSource) Subscribe() <-chan core.LogEntry {
	ch := make(chan core.LogEntry, s.bufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *TraceSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("trace source already started")
	}
	s.started = true
	s.startTime = time.Now()
	s.sub = s.tracer.Events(context.Background())

	s.wg.Add(1)
	go s.readLoop(s.sub)

	s.logger.Info("msg", "Trace source started",
		"component", "trace_source",
		"subsystem", s.config.Subsystem,
		"category", s.config.Category,
		"minimum_level", s.config.MinimumLevel,
		"scope", s.config.Scope)
	return nil
}

func (s *TraceSource) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			s.logger.Debug("msg", "Trace subscription ended with error",
				"component", "trace_source",
				"error", err)
		}
	}
	s.wg.Wait()
	s.closeSubscribers()

	s.logger.Info("msg", "Trace source stopped", "component", "trace_source")
}

// Err returns the failure that ended the subscription, if any.
func (s *TraceSource) Err() error {
	err, _ := s.failure.Load().(error)
	return err
}

func (s *TraceSource) GetStats() Stats {
	lastEntry, _ := s.lastEntryTime.Load().(time.Time)

	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()

	details := map[string]any{
		"subsystem":     s.config.Subsystem,
		"category":      s.config.Category,
		"minimum_level": s.config.MinimumLevel,
		"scope":         s.config.Scope,
	}
	if sub != nil {
		details["engine"] = sub.GetStats()
	}
	if err := s.Err(); err != nil {
		details["error"] = err.Error()
	}

	return Stats{
		Type:           "trace",
		TotalEntries:   s.totalEntries.Load(),
		DroppedEntries: s.droppedEntries.Load(),
		StartTime:      s.startTime,
		LastEntryTime:  lastEntry,
		Details:        details,
	}
}

// readLoop is the only sender on the subscriber channels, so it closes them
// when the subscription ends. Err is set before the close on failure.
func (s *TraceSource) readLoop(sub *trace.Subscription) {
	defer s.wg.Done()
	defer s.closeSubscribers()

	for ev := range sub.C() {
		s.publish(core.ToLogEntry(ev))
	}

	if err := sub.Err(); err != nil {
		s.failure.Store(err)
		s.logger.Error("msg", "Trace subscription failed",
			"component", "trace_source",
			"error", err)
	}
}

func (s *TraceSource) closeSubscribers() {
	s.closed.Do(func() {
		for _, ch := range s.subscribers {
			close(ch)
		}
	})
}

func (s *TraceSource) publish(entry core.LogEntry) {
	s.totalEntries.Add(1)
	s.lastEntryTime.Store(entry.Time)

	for _, ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
			s.droppedEntries.Add(1)
			s.logger.Debug("msg", "Dropped entry - subscriber buffer full",
				"component", "trace_source")
		}
	}
}
