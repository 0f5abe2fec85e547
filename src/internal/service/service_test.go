// FILE: logtrace/src/internal/service/service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/store"
	"logtrace/src/internal/trace"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBoot = time.Unix(1700000000, 0)

func record(seconds float64, level core.Level, msg string) core.Record {
	return core.Record{
		Timestamp: testBoot.Add(time.Duration(seconds * float64(time.Second))),
		Level:     level,
		Subsystem: "app",
		Message:   msg,
	}
}

func newTestService(t *testing.T, provider store.Provider) *Service {
	t.Helper()
	svc := NewService(context.Background(), log.NewLogger(),
		WithTraceOptions(
			trace.WithProvider(provider),
			trace.WithBuildCheck(func() bool { return true }),
		))
	t.Cleanup(svc.Shutdown)
	return svc
}

func testPipelineConfig(name string) *config.PipelineConfig {
	tc := config.DefaultTraceConfig()
	tc.PollIntervalMS = 2
	tc.LookbackMS = 10000
	return &config.PipelineConfig{
		Name:   name,
		Trace:  tc,
		Format: &config.FormatConfig{Type: "raw"},
		Sinks: []config.SinkConfig{
			{Type: "console", Console: &config.ConsoleSinkOptions{Target: "stdout", BufferSize: 16}},
		},
	}
}

func TestService_PipelineFlow(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5,
		record(1, core.LevelInfo, "worker ready"),
		record(2, core.LevelDebug, "noise from poller"),
		record(3, core.LevelError, "worker crashed"),
	)
	svc := newTestService(t, provider)

	cfg := testPipelineConfig("main")
	cfg.Filters = []config.FilterConfig{
		{Type: config.FilterTypeExclude, Patterns: []string{"noise"}},
	}
	require.NoError(t, svc.NewPipeline(cfg))

	p, err := svc.GetPipeline("main")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return p.Sinks[0].GetStats().TotalProcessed == 2
	}, 2*time.Second, 5*time.Millisecond)

	stats := p.GetStats()
	assert.Equal(t, uint64(3), stats["total_processed"])
	assert.Equal(t, uint64(1), stats["total_filtered"])
	assert.Equal(t, uint64(0), stats["total_dropped_rate_limit"])
	assert.Equal(t, 1, stats["sink_count"])
	assert.Equal(t, "trace", stats["source"].(map[string]any)["type"])
	assert.Equal(t, false, stats["rate_limiter"].(map[string]any)["enabled"])

	sinks := stats["sinks"].([]map[string]any)
	require.Len(t, sinks, 1)
	assert.Equal(t, uint64(0), sinks[0]["dropped_buffer_full"])

	global := svc.GetGlobalStats()
	assert.Equal(t, 1, global["total_pipelines"])
	assert.Equal(t, uint64(3), global["total_processed"])
	assert.Equal(t, uint64(1), global["total_filtered"])
}

func TestService_RateLimitedPipeline(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5,
		record(1, core.LevelInfo, "a"),
		record(1.1, core.LevelInfo, "b"),
		record(1.2, core.LevelInfo, "c"),
		record(1.3, core.LevelInfo, "d"),
	)
	svc := newTestService(t, provider)

	cfg := testPipelineConfig("limited")
	cfg.RateLimit = &config.RateLimitConfig{Rate: 0.001, Burst: 1, Policy: "drop"}
	require.NoError(t, svc.NewPipeline(cfg))

	p, err := svc.GetPipeline("limited")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return p.Stats.Processed.Load() == 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(3), p.Stats.RateLimited.Load())
}

func TestService_PipelineLifecycle(t *testing.T) {
	svc := newTestService(t, store.NewMemoryProvider(testBoot, 5))

	require.NoError(t, svc.NewPipeline(testPipelineConfig("b")))
	require.NoError(t, svc.NewPipeline(testPipelineConfig("a")))
	assert.Error(t, svc.NewPipeline(testPipelineConfig("a")), "duplicate names are rejected")
	assert.Equal(t, []string{"a", "b"}, svc.ListPipelines())

	require.NoError(t, svc.RemovePipeline("a"))
	assert.Error(t, svc.RemovePipeline("a"))
	_, err := svc.GetPipeline("a")
	assert.ErrorIs(t, err, errUnknownPipeline)
	assert.Equal(t, []string{"b"}, svc.ListPipelines())

	svc.Shutdown()
	assert.Empty(t, svc.ListPipelines())
}

func TestService_SourceFailureRetiresPipeline(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5, record(1, core.LevelInfo, "never read"))
	provider.FailWith(core.ErrPermissionDenied)
	svc := newTestService(t, provider)

	require.NoError(t, svc.NewPipeline(testPipelineConfig("doomed")))
	require.NoError(t, svc.NewPipeline(testPipelineConfig("other")))

	assert.Eventually(t, func() bool {
		return len(svc.FailedPipelines()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, svc.ListPipelines())

	cause := svc.FailedPipelines()["doomed"]
	assert.Contains(t, cause, "permission denied")
	failed := svc.GetGlobalStats()["failed_pipelines"].(map[string]string)
	assert.Equal(t, cause, failed["doomed"])
	assert.Equal(t, 0, svc.GetGlobalStats()["total_pipelines"])

	// A fresh pipeline under the same name clears the record
	provider.FailWith(nil)
	require.NoError(t, svc.NewPipeline(testPipelineConfig("doomed")))
	assert.NotContains(t, svc.FailedPipelines(), "doomed")
}

func TestService_NewPipelineErrors(t *testing.T) {
	svc := newTestService(t, store.NewMemoryProvider(testBoot, 5))

	testCases := []struct {
		name   string
		mutate func(*config.PipelineConfig)
	}{
		{"BadFilter", func(c *config.PipelineConfig) {
			c.Filters = []config.FilterConfig{{Patterns: []string{"["}}}
		}},
		{"BadFormat", func(c *config.PipelineConfig) {
			c.Format = &config.FormatConfig{Type: "xml"}
		}},
		{"UnknownSink", func(c *config.PipelineConfig) {
			c.Sinks = []config.SinkConfig{{Type: "file"}}
		}},
		{"MissingHTTPOptions", func(c *config.PipelineConfig) {
			c.Sinks = []config.SinkConfig{{Type: "http"}}
		}},
		{"BadTrace", func(c *config.PipelineConfig) {
			c.Trace.MinimumLevel = "loud"
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testPipelineConfig(tc.name)
			tc.mutate(cfg)
			assert.Error(t, svc.NewPipeline(cfg))
			_, err := svc.GetPipeline(tc.name)
			assert.Error(t, err, "failed pipelines are not registered")
		})
	}
}
