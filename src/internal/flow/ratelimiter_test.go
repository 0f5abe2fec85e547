// FILE: logtrace/src/internal/flow/ratelimiter_test.go
package flow

import (
	"testing"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_Disabled(t *testing.T) {
	l, err := NewRateLimiter(config.RateLimitConfig{Rate: 0}, log.NewLogger())
	require.NoError(t, err)
	assert.Nil(t, l)

	// nil limiter passes everything
	assert.True(t, l.Allow(core.LogEntry{Message: "x"}))
	assert.Equal(t, false, l.GetStats()["enabled"])
}

func TestRateLimiter_DropPolicy(t *testing.T) {
	l, err := NewRateLimiter(config.RateLimitConfig{Rate: 0.001, Burst: 3, Policy: "drop"}, log.NewLogger())
	require.NoError(t, err)
	require.NotNil(t, l)

	allowed := 0
	for range 10 {
		if l.Allow(core.LogEntry{Message: "m"}) {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)

	stats := l.GetStats()
	assert.Equal(t, uint64(7), stats["dropped_total"])
	assert.Equal(t, "drop", stats["policy"])
}

func TestRateLimiter_PassPolicy(t *testing.T) {
	l, err := NewRateLimiter(config.RateLimitConfig{Rate: 0.001, Burst: 1, Policy: "pass"}, log.NewLogger())
	require.NoError(t, err)

	for range 5 {
		assert.True(t, l.Allow(core.LogEntry{Message: "m"}))
	}
	assert.Equal(t, uint64(0), l.GetStats()["dropped_total"])
}

func TestRateLimiter_MaxEntrySize(t *testing.T) {
	l, err := NewRateLimiter(config.RateLimitConfig{Rate: 1000, Burst: 1000, Policy: "drop", MaxEntrySizeBytes: 16}, log.NewLogger())
	require.NoError(t, err)

	assert.True(t, l.Allow(core.LogEntry{RawSize: 16}))
	assert.False(t, l.Allow(core.LogEntry{RawSize: 17}))
	assert.Equal(t, uint64(1), l.GetStats()["dropped_by_size_total"])
}

func TestRateLimiter_ExemptLevel(t *testing.T) {
	l, err := NewRateLimiter(config.RateLimitConfig{Rate: 0.001, Burst: 1, Policy: "drop", ExemptLevel: "error"}, log.NewLogger())
	require.NoError(t, err)

	assert.True(t, l.Allow(core.LogEntry{Level: "debug"}), "first entry takes the only token")
	assert.False(t, l.Allow(core.LogEntry{Level: "notice"}))
	assert.True(t, l.Allow(core.LogEntry{Level: "error"}))
	assert.True(t, l.Allow(core.LogEntry{Level: "fault"}))
	assert.False(t, l.Allow(core.LogEntry{Level: "unknown"}))

	stats := l.GetStats()
	assert.Equal(t, uint64(2), stats["exempted_total"])
	assert.Equal(t, uint64(2), stats["dropped_total"])
	assert.Equal(t, "error", stats["exempt_level"])
}

func TestNewRateLimiter_BadExemptLevel(t *testing.T) {
	_, err := NewRateLimiter(config.RateLimitConfig{Rate: 1, ExemptLevel: "loud"}, log.NewLogger())
	assert.Error(t, err)
}
