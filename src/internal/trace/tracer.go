// FILE: logtrace/src/internal/trace/tracer.go
package trace

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"logtrace/src/internal/core"
	"logtrace/src/internal/store"
	"logtrace/src/internal/stream"
	"logtrace/src/internal/version"

	"github.com/lixenwraith/log"
)

// Tracer is the entry point for consumers: it validates the environment
// once and hands out event subscriptions.
type Tracer struct {
	config   stream.Config
	provider store.Provider
	logger   *log.Logger
}

type options struct {
	provider   store.Provider
	logger     *log.Logger
	journal    store.JournalOptions
	supported  func() bool
	debugBuild func() bool
}

// Option customizes tracer construction.
type Option func(*options)

// WithProvider injects a log store, skipping journald discovery.
func WithProvider(p store.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithJournalOptions configures the journald provider.
func WithJournalOptions(j store.JournalOptions) Option {
	return func(o *options) { o.journal = j }
}

// WithSupportCheck replaces the platform support check.
func WithSupportCheck(fn func() bool) Option {
	return func(o *options) { o.supported = fn }
}

// WithBuildCheck replaces the debug build check.
func WithBuildCheck(fn func() bool) Option {
	return func(o *options) { o.debugBuild = fn }
}

// Supported reports whether the journald store can be read on this host.
func Supported() bool {
	if !store.Supported() {
		return false
	}
	_, err := exec.LookPath(store.DefaultJournalOptions().Path)
	return err == nil
}

// New validates cfg and the environment and returns a tracer.
func New(cfg stream.Config, opts ...Option) (*Tracer, error) {
	o := options{
		journal:    store.DefaultJournalOptions(),
		supported:  Supported,
		debugBuild: version.IsDebugBuild,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trace config: %w", err)
	}

	if o.provider == nil && !o.supported() {
		return nil, core.ErrUnsupportedPlatform
	}
	if !o.debugBuild() && !cfg.EnabledInRelease {
		return nil, core.ErrDisabledInBuild
	}

	provider := o.provider
	if provider == nil {
		jp, err := store.NewJournalProvider(o.journal)
		if err != nil {
			if errors.Is(err, core.ErrUnsupportedPlatform) {
				return nil, err
			}
			return nil, core.NewTraceError(core.ErrStoreUnavailable, err)
		}
		provider = jp
	}

	return &Tracer{
		config:   cfg,
		provider: provider,
		logger:   o.logger,
	}, nil
}

// Config returns the configuration the tracer was built with.
func (t *Tracer) Config() stream.Config {
	return t.config
}

// Events starts a fresh engine run bound to ctx. Each subscription has its
// own cursor and dedup state.
func (t *Tracer) Events(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		engine: stream.New(t.config, t.provider, t.logger),
		events: make(chan core.Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go s.run(ctx)
	return s
}

// Subscription is one live event stream. C has a single consumer.
type Subscription struct {
	engine *stream.Engine
	events chan core.Event
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	err := s.engine.RunDeliver(ctx, func(ev core.Event) bool {
		select {
		case s.events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	})

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// C delivers events until the subscription ends.
func (s *Subscription) C() <-chan core.Event {
	return s.events
}

// Done is closed once the engine has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err is nil while running and after cancellation; otherwise the
// iteration failure that ended the stream.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close cancels the subscription and waits for the engine to stop.
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return s.Err()
}

// Stats returns the engine counters of this subscription.
func (s *Subscription) Stats() stream.Stats {
	return s.engine.Stats()
}

// GetStats returns the engine counters in status map form.
func (s *Subscription) GetStats() map[string]any {
	return s.engine.GetStats()
}

// MakeDefault returns the default configuration scoped to subsystem and category.
func MakeDefault(subsystem, category string) stream.Config {
	cfg := stream.DefaultConfig()
	cfg.Subsystem = subsystem
	cfg.Category = category
	return cfg
}
