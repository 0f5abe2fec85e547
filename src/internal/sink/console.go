// FILE: logtrace/src/internal/sink/console.go
package sink

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/format"

	"github.com/lixenwraith/log"
)

// ConsoleSink writes entries to stdout, stderr, or both. In split mode error
// and fault entries go to stderr and everything else to stdout.
type ConsoleSink struct {
	input     chan core.LogEntry
	target    string
	out       io.Writer
	errOut    io.Writer
	outFmt    format.Formatter
	errFmt    format.Formatter
	done      chan struct{}
	finished  chan struct{}
	stopOnce  sync.Once
	started   atomic.Bool
	startTime time.Time
	logger    *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	writeErrors    atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

// NewConsoleSink creates a console sink. Text formatters colour levels per stream when it is a terminal.
func NewConsoleSink(opts *config.ConsoleSinkOptions, logger *log.Logger, formatter format.Formatter) *ConsoleSink {
	target := "stdout"
	bufferSize := int64(core.DefaultBufferSize)
	if opts != nil {
		if opts.Target != "" {
			target = opts.Target
		}
		if opts.BufferSize > 0 {
			bufferSize = opts.BufferSize
		}
	}

	s := &ConsoleSink{
		input:     make(chan core.LogEntry, bufferSize),
		target:    target,
		out:       os.Stdout,
		errOut:    os.Stderr,
		outFmt:    format.ForOutput(formatter, os.Stdout),
		errFmt:    format.ForOutput(formatter, os.Stderr),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		startTime: time.Now(),
		logger:    logger,
	}
	s.lastProcessed.Store(time.Time{})
	return s
}

func (s *ConsoleSink) Input() chan<- core.LogEntry {
	return s.input
}

func (s *ConsoleSink) Start(ctx context.Context) error {
	s.started.Store(true)
	go s.processLoop(ctx)
	s.logger.Info("msg", "Console sink started",
		"component", "console_sink",
		"target", s.target)
	return nil
}

func (s *ConsoleSink) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	if s.started.Load() {
		<-s.finished
	}
	s.logger.Info("msg", "Console sink stopped", "component", "console_sink")
}

func (s *ConsoleSink) GetStats() Stats {
	lastProc, _ := s.lastProcessed.Load().(time.Time)

	return Stats{
		Type:           "console",
		TotalProcessed: s.totalProcessed.Load(),
		StartTime:      s.startTime,
		LastProcessed:  lastProc,
		Details: map[string]any{
			"target":       s.target,
			"write_errors": s.writeErrors.Load(),
		},
	}
}

func (s *ConsoleSink) processLoop(ctx context.Context) {
	defer close(s.finished)

	for {
		select {
		case entry, ok := <-s.input:
			if !ok {
				return
			}
			s.write(entry)

		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *ConsoleSink) write(entry core.LogEntry) {
	s.totalProcessed.Add(1)
	s.lastProcessed.Store(time.Now())

	w, f := s.out, s.outFmt
	switch s.target {
	case "stderr":
		w, f = s.errOut, s.errFmt
	case "split":
		if isErrorLevel(entry.Level) {
			w, f = s.errOut, s.errFmt
		}
	}

	formatted, err := f.Format(entry)
	if err != nil {
		s.logger.Error("msg", "Failed to format entry",
			"component", "console_sink",
			"error", err)
		return
	}
	if _, err := w.Write(formatted); err != nil {
		s.writeErrors.Add(1)
	}
}

func isErrorLevel(level string) bool {
	l, err := core.ParseLevel(level)
	return err == nil && level != "" && l >= core.LevelError
}
