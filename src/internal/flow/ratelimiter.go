// FILE: logtrace/src/internal/flow/ratelimiter.go
package flow

import (
	"math"
	"strings"
	"sync/atomic"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// RateLimiter throttles entries between the source and the filter chain.
// A nil *RateLimiter is valid and lets everything through.
type RateLimiter struct {
	bucket  *rate.Limiter
	enforce bool
	maxSize int64

	exempt    bool
	exemptMin core.Level

	logger *log.Logger

	overRate atomic.Uint64
	oversize atomic.Uint64
	exempted atomic.Uint64
}

// NewRateLimiter returns nil, nil when cfg.Rate is not positive.
func NewRateLimiter(cfg config.RateLimitConfig, logger *log.Logger) (*RateLimiter, error) {
	if cfg.Rate <= 0 {
		return nil, nil
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Rate
	}

	l := &RateLimiter{
		bucket:  rate.NewLimiter(rate.Limit(cfg.Rate), int(math.Ceil(burst))),
		enforce: strings.EqualFold(cfg.Policy, "drop"),
		maxSize: cfg.MaxEntrySizeBytes,
		logger:  logger,
	}

	if cfg.ExemptLevel != "" {
		lvl, err := core.ParseLevel(cfg.ExemptLevel)
		if err != nil {
			return nil, err
		}
		l.exempt = true
		l.exemptMin = lvl
	}

	logger.Debug("msg", "Rate limiter created",
		"component", "rate_limiter",
		"rate", cfg.Rate,
		"burst", burst,
		"policy", l.policy(),
		"exempt_level", cfg.ExemptLevel)

	return l, nil
}

// Allow reports whether entry may continue down the pipeline. Exempt entries
// neither consume tokens nor count as drops.
func (l *RateLimiter) Allow(entry core.LogEntry) bool {
	if l == nil || !l.enforce {
		return true
	}

	if l.maxSize > 0 && entry.RawSize > l.maxSize {
		l.oversize.Add(1)
		return false
	}

	if l.exempt {
		if lvl, err := core.ParseLevel(entry.Level); err == nil && lvl >= l.exemptMin {
			l.exempted.Add(1)
			return true
		}
	}

	if !l.bucket.Allow() {
		l.overRate.Add(1)
		return false
	}
	return true
}

func (l *RateLimiter) policy() string {
	if l.enforce {
		return "drop"
	}
	return "pass"
}

func (l *RateLimiter) GetStats() map[string]any {
	if l == nil {
		return map[string]any{"enabled": false}
	}

	stats := map[string]any{
		"enabled":               true,
		"policy":                l.policy(),
		"dropped_total":         l.overRate.Load(),
		"dropped_by_size_total": l.oversize.Load(),
		"exempted_total":        l.exempted.Load(),
		"max_entry_size_bytes":  l.maxSize,
		"tokens":                l.bucket.Tokens(),
	}
	if l.exempt {
		stats["exempt_level"] = l.exemptMin.String()
	}
	return stats
}
