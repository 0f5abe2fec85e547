// FILE: logtrace/src/internal/stream/config.go
package stream

import (
	"fmt"
	"time"

	"logtrace/src/internal/core"
	"logtrace/src/internal/store"
)

// Config controls one engine run.
type Config struct {
	// Equality filters pushed down to the store; empty means unset
	Subsystem string
	Category  string

	// Records below this level are dropped
	MinimumLevel core.Level

	// Delay between polls
	PollInterval time.Duration

	// How far before "now" the first poll starts
	Lookback time.Duration

	// Per-poll emission cap; 0 emits nothing
	MaxEventsPerPoll int

	// Fingerprints remembered for dedup; 0 disables
	DedupeWindow int

	IncludeSignposts bool
	IncludeTraceIDs  bool

	// Allows the tracer to run in release builds
	EnabledInRelease bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinimumLevel:     core.LevelDebug,
		PollInterval:     core.DefaultPollInterval,
		Lookback:         core.DefaultLookback,
		MaxEventsPerPoll: core.DefaultMaxEventsPerPoll,
		DedupeWindow:     core.DefaultDedupeWindow,
		IncludeTraceIDs:  true,
	}
}

// Predicate returns the store filter for this config.
func (c Config) Predicate() store.Predicate {
	return store.Predicate{Subsystem: c.Subsystem, Category: c.Category}
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if !c.MinimumLevel.Valid() {
		return fmt.Errorf("invalid minimum level: %d", c.MinimumLevel)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative: %s", c.PollInterval)
	}
	if c.Lookback < 0 {
		return fmt.Errorf("lookback cannot be negative: %s", c.Lookback)
	}
	if c.MaxEventsPerPoll < 0 {
		return fmt.Errorf("max events per poll cannot be negative: %d", c.MaxEventsPerPoll)
	}
	if c.DedupeWindow < 0 {
		return fmt.Errorf("dedupe window cannot be negative: %d", c.DedupeWindow)
	}
	return nil
}
