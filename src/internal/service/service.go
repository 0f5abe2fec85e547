// FILE: logtrace/src/internal/service/service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"logtrace/src/internal/config"
	"logtrace/src/internal/format"
	"logtrace/src/internal/sink"
	"logtrace/src/internal/source"
	"logtrace/src/internal/trace"

	"github.com/lixenwraith/log"
)

// Service manages a collection of trace pipelines.
type Service struct {
	pipelines map[string]*Pipeline
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	logger    *log.Logger

	// Pipelines that died on their own, name to cause
	failed map[string]string

	// Applied to every trace source after the config-derived options
	traceOpts []trace.Option
}

// Option configures a Service.
type Option func(*Service)

// WithTraceOptions passes extra tracer options to every pipeline source.
func WithTraceOptions(opts ...trace.Option) Option {
	return func(s *Service) {
		s.traceOpts = append(s.traceOpts, opts...)
	}
}

// NewService creates a new, empty service.
func NewService(ctx context.Context, logger *log.Logger, opts ...Option) *Service {
	serviceCtx, cancel := context.WithCancel(ctx)
	s := &Service{
		pipelines: make(map[string]*Pipeline),
		failed:    make(map[string]string),
		ctx:       serviceCtx,
		cancel:    cancel,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errUnknownPipeline = errors.New("pipeline not found")

// GetPipeline returns the running pipeline called name.
func (s *Service) GetPipeline(name string) (*Pipeline, error) {
	s.mu.RLock()
	p, ok := s.pipelines[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownPipeline, name)
	}
	return p, nil
}

func (s *Service) ListPipelines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.pipelines))
}

// RemovePipeline unregisters name and waits for its shutdown.
func (s *Service) RemovePipeline(name string) error {
	s.mu.Lock()
	p, ok := s.pipelines[name]
	delete(s.pipelines, name)
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("msg", "Cannot remove unknown pipeline",
			"component", "service",
			"pipeline", name)
		return fmt.Errorf("%w: %s", errUnknownPipeline, name)
	}

	s.logger.Info("msg", "Removing pipeline",
		"component", "service",
		"pipeline", name)
	p.Shutdown()
	return nil
}

// Shutdown stops every pipeline in parallel, then cancels the service context.
func (s *Service) Shutdown() {
	s.logger.Info("msg", "Service shutdown initiated", "component", "service")

	s.mu.Lock()
	running := slices.Collect(maps.Values(s.pipelines))
	clear(s.pipelines)
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range running {
		wg.Go(p.Shutdown)
	}
	wg.Wait()

	s.cancel()
	s.wg.Wait()

	s.logger.Info("msg", "Service shutdown complete",
		"component", "service",
		"pipelines_stopped", len(running))
}

// GetGlobalStats reports every pipeline plus totals across them.
func (s *Service) GetGlobalStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var processed, rateLimited, filtered, sinkDrops uint64
	perPipeline := make(map[string]any, len(s.pipelines))
	for name, p := range s.pipelines {
		perPipeline[name] = p.GetStats()
		processed += p.Stats.Processed.Load()
		rateLimited += p.Stats.RateLimited.Load()
		filtered += p.Stats.Filtered.Load()
		sinkDrops += p.Stats.SinkDropTotal()
	}

	return map[string]any{
		"pipelines":                perPipeline,
		"total_pipelines":          len(s.pipelines),
		"total_processed":          processed,
		"total_dropped_rate_limit": rateLimited,
		"total_filtered":           filtered,
		"total_dropped_sink_full":  sinkDrops,
		"failed_pipelines":         maps.Clone(s.failed),
	}
}

// NewPipeline builds, starts and registers a pipeline. Names are unique.
func (s *Service) NewPipeline(cfg *config.PipelineConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pipelines[cfg.Name]; exists {
		s.logger.Error("msg", "Duplicate pipeline name",
			"component", "service",
			"pipeline", cfg.Name)
		return fmt.Errorf("pipeline '%s' already exists", cfg.Name)
	}

	s.logger.Debug("msg", "Creating pipeline",
		"component", "service",
		"pipeline", cfg.Name)

	p, err := s.buildPipeline(cfg)
	if err != nil {
		return err
	}

	name := cfg.Name
	if err := p.start(func(cause error) { s.retire(name, cause) }); err != nil {
		return err
	}

	s.pipelines[name] = p
	delete(s.failed, name)
	s.logger.Info("msg", "Pipeline created successfully",
		"component", "service",
		"pipeline", name,
		"sinks", len(p.Sinks),
		"filters", len(cfg.Filters))
	return nil
}

// retire removes a pipeline that died on its own and remembers why.
func (s *Service) retire(name string, cause error) {
	s.logger.Warn("msg", "Retiring failed pipeline",
		"component", "service",
		"pipeline", name,
		"cause", cause)

	s.mu.Lock()
	s.failed[name] = cause.Error()
	s.mu.Unlock()

	if err := s.RemovePipeline(name); err != nil {
		s.logger.Error("msg", "Failed to remove failed pipeline",
			"component", "service",
			"pipeline", name,
			"error", err)
	}
}

// FailedPipelines returns the cause of death of every retired pipeline.
func (s *Service) FailedPipelines() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.failed)
}

// createSource builds the trace source of a pipeline.
func (s *Service) createSource(cfg *config.TraceConfig) (source.Source, error) {
	src, err := source.NewTraceSource(cfg, s.logger, s.traceOpts...)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// createSink maps a sink block onto its implementation.
func (s *Service) createSink(cfg config.SinkConfig, formatter format.Formatter) (sink.Sink, error) {
	switch cfg.Type {
	case "console":
		return sink.NewConsoleSink(cfg.Console, s.logger, formatter), nil

	case "http":
		if cfg.HTTP == nil {
			return nil, fmt.Errorf("HTTP sink configuration missing")
		}
		return sink.NewHTTPSink(cfg.HTTP, s.logger, formatter)

	case "tcp":
		if cfg.TCP == nil {
			return nil, fmt.Errorf("TCP sink configuration missing")
		}
		return sink.NewTCPSink(cfg.TCP, s.logger, formatter)

	default:
		return nil, fmt.Errorf("unknown sink type: %s", cfg.Type)
	}
}
