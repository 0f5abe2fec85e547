// FILE: logtrace/src/internal/trace/tracer_test.go
package trace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"logtrace/src/internal/core"
	"logtrace/src/internal/store"
	"logtrace/src/internal/stream"

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
		Category:  "net",
		Message:   msg,
	}
}

func fastConfig() stream.Config {
	cfg := MakeDefault("app", "net")
	cfg.PollInterval = 2 * time.Millisecond
	cfg.Lookback = 10 * time.Second
	return cfg
}

func always() bool { return true }
func never() bool  { return false }

func TestNew_Gates(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5)

	t.Run("UnsupportedPlatform", func(t *testing.T) {
		_, err := New(fastConfig(), WithSupportCheck(never), WithBuildCheck(always))
		assert.ErrorIs(t, err, core.ErrUnsupportedPlatform)
	})

	t.Run("DisabledInRelease", func(t *testing.T) {
		_, err := New(fastConfig(), WithProvider(provider), WithBuildCheck(never))
		assert.ErrorIs(t, err, core.ErrDisabledInBuild)
	})

	t.Run("EnabledInRelease", func(t *testing.T) {
		cfg := fastConfig()
		cfg.EnabledInRelease = true
		tr, err := New(cfg, WithProvider(provider), WithBuildCheck(never))
		require.NoError(t, err)
		assert.True(t, tr.Config().EnabledInRelease)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		cfg := fastConfig()
		cfg.MaxEventsPerPoll = -1
		_, err := New(cfg, WithProvider(provider), WithBuildCheck(always))
		assert.Error(t, err)
	})

	t.Run("MissingJournalctl", func(t *testing.T) {
		opts := store.DefaultJournalOptions()
		opts.Path = "/nonexistent/journalctl"
		_, err := New(fastConfig(),
			WithSupportCheck(always),
			WithBuildCheck(always),
			WithJournalOptions(opts))
		assert.ErrorIs(t, err, core.ErrUnsupportedPlatform)
	})

	t.Run("BadJournalOptions", func(t *testing.T) {
		opts := store.DefaultJournalOptions()
		opts.Scope = "galaxy"
		_, err := New(fastConfig(),
			WithSupportCheck(always),
			WithBuildCheck(always),
			WithJournalOptions(opts))
		assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	})
}

func TestMakeDefault(t *testing.T) {
	cfg := MakeDefault("sub", "cat")
	assert.Equal(t, "sub", cfg.Subsystem)
	assert.Equal(t, "cat", cfg.Category)
	assert.Equal(t, stream.DefaultConfig().PollInterval, cfg.PollInterval)
}

func TestEvents_DeliversAndCloses(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5,
		record(1, core.LevelInfo, "hello"),
		record(2, core.LevelError, "world"),
	)
	tr, err := New(fastConfig(), WithProvider(provider), WithBuildCheck(always), WithLogger(log.NewLogger()))
	require.NoError(t, err)

	sub := tr.Events(context.Background())

	var got []string
	for len(got) < 2 {
		select {
		case ev := <-sub.C():
			got = append(got, ev.Message)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, []string{"hello", "world"}, got)

	require.NoError(t, sub.Close())
	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
	_, open := <-sub.C()
	assert.False(t, open)
	assert.Equal(t, uint64(2), sub.Stats().Emitted)
}

func TestEvents_ParentCancel(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 1)
	tr, err := New(fastConfig(), WithProvider(provider), WithBuildCheck(always))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sub := tr.Events(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	for range sub.C() {
		t.Fatal("no events expected from an empty store")
	}
	assert.NoError(t, sub.Err())
}

func TestEvents_CloseWithUnreadEvents(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5,
		record(1, core.LevelInfo, "a"),
		record(2, core.LevelInfo, "b"),
	)
	tr, err := New(fastConfig(), WithProvider(provider), WithBuildCheck(always))
	require.NoError(t, err)

	sub := tr.Events(context.Background())
	time.Sleep(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- sub.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked on an undrained consumer")
	}
}

func TestEvents_CloseStopsEmitting(t *testing.T) {
	var records []core.Record
	for i := range 50 {
		records = append(records, record(1+float64(i)*0.01, core.LevelInfo, fmt.Sprintf("burst %d", i)))
	}
	provider := store.NewMemoryProvider(testBoot, 5, records...)
	tr, err := New(fastConfig(), WithProvider(provider), WithBuildCheck(always))
	require.NoError(t, err)

	sub := tr.Events(context.Background())
	select {
	case <-sub.C():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the first event")
	}
	require.NoError(t, sub.Close())

	received := 1
	for range sub.C() {
		received++
	}
	assert.Equal(t, 1, received)
	assert.Equal(t, uint64(1), sub.Stats().Emitted, "events nobody took are not counted")
}

func TestEvents_IterationFailure(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5)
	provider.FailWith(errors.New("journal corrupted"))

	tr, err := New(fastConfig(), WithProvider(provider), WithBuildCheck(always))
	require.NoError(t, err)

	sub := tr.Events(context.Background())
	for range sub.C() {
	}

	err = sub.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIterationFailed)
	assert.Contains(t, err.Error(), "journal corrupted")
	assert.ErrorIs(t, sub.Close(), core.ErrIterationFailed)
}

func TestEvents_IndependentSubscriptions(t *testing.T) {
	provider := store.NewMemoryProvider(testBoot, 5, record(1, core.LevelInfo, "shared"))
	tr, err := New(fastConfig(), WithProvider(provider), WithBuildCheck(always))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		sub := tr.Events(context.Background())
		select {
		case ev := <-sub.C():
			assert.Equal(t, "shared", ev.Message)
		case <-time.After(time.Second):
			t.Fatalf("subscription %d got nothing", i)
		}
		require.NoError(t, sub.Close())
	}
}
