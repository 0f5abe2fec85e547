// FILE: logtrace/src/internal/service/pipeline.go
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/filter"
	"logtrace/src/internal/flow"
	"logtrace/src/internal/format"
	"logtrace/src/internal/sink"
	"logtrace/src/internal/source"

	"github.com/lixenwraith/log"
)

// Pipeline moves entries from one trace source through the rate limiter and
// filters to its sinks. RateLimiter and FilterChain are nil when unconfigured.
type Pipeline struct {
	Config      *config.PipelineConfig
	Source      source.Source
	RateLimiter *flow.RateLimiter
	FilterChain *filter.Chain
	Sinks       []sink.Sink
	Stats       *PipelineStats
	logger      *log.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	endReason atomic.Value // string, set when the pipeline dies on its own
}

// PipelineStats counts what happened to each entry the source delivered.
type PipelineStats struct {
	StartTime   time.Time
	Processed   atomic.Uint64
	RateLimited atomic.Uint64
	Filtered    atomic.Uint64

	// Indexed like Pipeline.Sinks
	SinkDrops []atomic.Uint64
}

// SinkDropTotal sums entries lost to full sink buffers.
func (ps *PipelineStats) SinkDropTotal() uint64 {
	var total uint64
	for i := range ps.SinkDrops {
		total += ps.SinkDrops[i].Load()
	}
	return total
}

// buildPipeline constructs every stage without starting any of them.
func (s *Service) buildPipeline(cfg *config.PipelineConfig) (p *Pipeline, err error) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer func() {
		if err != nil {
			cancel()
		}
	}()

	p = &Pipeline{
		Config: cfg,
		Stats:  &PipelineStats{StartTime: time.Now()},
		ctx:    ctx,
		cancel: cancel,
		logger: s.logger,
	}

	if p.Source, err = s.createSource(cfg.Trace); err != nil {
		return nil, fmt.Errorf("failed to create trace source: %w", err)
	}

	if cfg.RateLimit != nil {
		if p.RateLimiter, err = flow.NewRateLimiter(*cfg.RateLimit, s.logger); err != nil {
			return nil, fmt.Errorf("failed to create pipeline rate limiter: %w", err)
		}
	}

	if len(cfg.Filters) > 0 {
		if p.FilterChain, err = filter.NewChain(cfg.Filters, s.logger); err != nil {
			return nil, fmt.Errorf("failed to create filter chain: %w", err)
		}
	}

	formatter, err := format.NewFormatter(cfg.Format, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create formatter: %w", err)
	}

	for i, sinkCfg := range cfg.Sinks {
		out, err := s.createSink(sinkCfg, formatter)
		if err != nil {
			return nil, fmt.Errorf("failed to create sink[%d]: %w", i, err)
		}
		p.Sinks = append(p.Sinks, out)
	}
	p.Stats.SinkDrops = make([]atomic.Uint64, len(p.Sinks))

	return p, nil
}

// start brings the stages up back to front, so the source only begins
// polling once every consumer is ready. onFail runs when the pipeline dies
// on its own: a failed source or a processing panic.
func (p *Pipeline) start(onFail func(cause error)) error {
	for i, out := range p.Sinks {
		if err := out.Start(p.ctx); err != nil {
			p.Shutdown()
			return fmt.Errorf("failed to start sink[%d]: %w", i, err)
		}
	}

	entries := p.Source.Subscribe()
	p.wg.Add(1)
	go p.run(entries, onFail)

	if err := p.Source.Start(); err != nil {
		p.Shutdown()
		return fmt.Errorf("failed to start trace source: %w", err)
	}
	return nil
}

func (p *Pipeline) run(entries <-chan core.LogEntry, onFail func(cause error)) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("msg", "Panic in pipeline processing",
				"component", "pipeline",
				"pipeline", p.Config.Name,
				"panic", r)
			p.die(sink.EndPipelineDied, fmt.Errorf("processing panic: %v", r), onFail)
		}
	}()

	for {
		select {
		case <-p.ctx.Done():
			return
		case entry, ok := <-entries:
			if !ok {
				if err := p.Source.Err(); err != nil {
					p.logger.Error("msg", "Trace source failed, pipeline stops",
						"component", "pipeline",
						"pipeline", p.Config.Name,
						"error", err)
					p.die(sink.EndSourceFailed, err, onFail)
				}
				return
			}
			p.process(entry)
		}
	}
}

// die records why the pipeline ended so Shutdown can tell sink clients.
func (p *Pipeline) die(reason string, cause error, onFail func(cause error)) {
	p.endReason.Store(reason)
	// Shutdown waits on the run goroutine
	go onFail(cause)
}

// process runs one entry through the stages and offers it to every sink.
func (p *Pipeline) process(entry core.LogEntry) {
	p.Stats.Processed.Add(1)

	if !p.RateLimiter.Allow(entry) {
		p.Stats.RateLimited.Add(1)
		return
	}

	if p.FilterChain != nil && !p.FilterChain.Apply(entry) {
		p.Stats.Filtered.Add(1)
		return
	}

	for i, out := range p.Sinks {
		select {
		case out.Input() <- entry:
		case <-p.ctx.Done():
			return
		default:
			// A slow sink loses entries rather than stall the journal stream
			p.Stats.SinkDrops[i].Add(1)
			p.logger.Debug("msg", "Dropped log entry - sink buffer full",
				"component", "pipeline",
				"pipeline", p.Config.Name,
				"sink_index", i)
		}
	}
}

// Shutdown stops the source, the processing goroutine, then all sinks in
// parallel. Safe to call more than once.
func (p *Pipeline) Shutdown() {
	p.stopOnce.Do(func() {
		reason, _ := p.endReason.Load().(string)
		p.logger.Info("msg", "Shutting down pipeline",
			"component", "pipeline",
			"pipeline", p.Config.Name,
			"end_reason", reason)

		if reason != "" {
			for _, out := range p.Sinks {
				if n, ok := out.(sink.EndNotifier); ok {
					n.SetEndReason(reason)
				}
			}
		}

		if p.Source != nil {
			p.Source.Stop()
		}
		p.cancel()
		p.wg.Wait()

		var wg sync.WaitGroup
		for _, out := range p.Sinks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out.Stop()
			}()
		}
		wg.Wait()

		p.logger.Info("msg", "Pipeline shutdown complete",
			"component", "pipeline",
			"pipeline", p.Config.Name)
	})
}

func (p *Pipeline) GetStats() map[string]any {
	stats := map[string]any{
		"name":                     p.Config.Name,
		"uptime_seconds":           int(time.Since(p.Stats.StartTime).Seconds()),
		"total_processed":          p.Stats.Processed.Load(),
		"total_dropped_rate_limit": p.Stats.RateLimited.Load(),
		"total_filtered":           p.Stats.Filtered.Load(),
		"total_dropped_sink_full":  p.Stats.SinkDropTotal(),
		"rate_limiter":             p.RateLimiter.GetStats(),
		"sink_count":               len(p.Sinks),
		"filter_count":             len(p.Config.Filters),
	}

	if p.Source != nil {
		stats["source"] = p.Source.GetStats().Map()
	}
	if p.FilterChain != nil {
		stats["filters"] = p.FilterChain.GetStats()
	}

	sinks := make([]map[string]any, len(p.Sinks))
	for i, out := range p.Sinks {
		sinks[i] = out.GetStats().Map()
		sinks[i]["dropped_buffer_full"] = p.Stats.SinkDrops[i].Load()
	}
	stats["sinks"] = sinks

	return stats
}
