// FILE: logtrace/src/internal/sink/http_test.go
package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/format"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func testHTTPOptions() *config.HTTPSinkOptions {
	return &config.HTTPSinkOptions{
		Host:       "127.0.0.1",
		Port:       0,
		StreamPath: "/stream",
		StatusPath: "/status",
		BufferSize: 16,
	}
}

func newTestHTTPSink(t *testing.T, opts *config.HTTPSinkOptions) *HTTPSink {
	t.Helper()
	formatter, err := format.NewJSONFormatter(nil, log.NewLogger())
	require.NoError(t, err)
	h, err := NewHTTPSink(opts, log.NewLogger(), formatter)
	require.NoError(t, err)
	return h
}

func doRequest(h *HTTPSink, path, authorization, remoteIP string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.SetRequestURI("http://localhost" + path)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, &net.TCPAddr{IP: net.ParseIP(remoteIP), Port: 40000}, nil)
	h.requestHandler(ctx)
	return ctx
}

func TestHTTPSink_StatusEndpoint(t *testing.T) {
	h := newTestHTTPSink(t, testHTTPOptions())
	defer h.Stop()

	ctx := doRequest(h, "/status", "", "127.0.0.1")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var status map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &status))
	assert.Equal(t, "LogTrace", status["service"])
	assert.Equal(t, "/stream", status["endpoints"].(map[string]any)["stream"])
}

func TestHTTPSink_NotFound(t *testing.T) {
	h := newTestHTTPSink(t, testHTTPOptions())
	defer h.Stop()

	ctx := doRequest(h, "/nope", "", "127.0.0.1")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestHTTPSink_NetLimitDenied(t *testing.T) {
	opts := testHTTPOptions()
	opts.NetLimit = &config.NetLimitConfig{IPBlacklist: []string{"192.0.2.0/24"}}
	h := newTestHTTPSink(t, opts)
	defer h.Stop()

	ctx := doRequest(h, "/status", "", "192.0.2.7")
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	ctx = doRequest(h, "/status", "", "198.51.100.7")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestHTTPSink_AuthRequired(t *testing.T) {
	opts := testHTTPOptions()
	opts.Auth = &config.ServerAuthConfig{
		Type:  "token",
		Token: &config.TokenAuthConfig{Tokens: []string{"secret-token"}},
	}
	h := newTestHTTPSink(t, opts)
	defer h.Stop()

	ctx := doRequest(h, "/stream", "Bearer wrong", "10.0.0.1")
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "Bearer", string(ctx.Response.Header.Peek("WWW-Authenticate")))

	// Status stays public
	ctx = doRequest(h, "/status", "", "10.0.0.1")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	auth := h.GetStats().Details["auth"].(map[string]any)
	assert.Equal(t, uint64(1), auth["failures"])
}

// openStream issues a GET for path on an in-memory connection and returns a
// function that blocks until a line containing substr arrives.
func openStream(t *testing.T, ln *fasthttputil.InmemoryListener, path string) func(substr string) string {
	t.Helper()
	conn, err := ln.Dial()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Write([]byte("GET " + path + " HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	require.NoError(t, err)

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	return func(substr string) string {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream closed before %q", substr)
				}
				if strings.Contains(line, substr) {
					return line
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", substr)
			}
		}
	}
}

func serveInMemory(t *testing.T, h *HTTPSink) *fasthttputil.InmemoryListener {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})
	h.serve(ctx, ln)
	return ln
}

func TestHTTPSink_StreamsEntries(t *testing.T) {
	h := newTestHTTPSink(t, testHTTPOptions())
	waitFor := openStream(t, serveInMemory(t, h), "/stream")

	waitFor("event: connected")
	assert.Eventually(t, func() bool { return h.GetStats().ActiveConnections == 1 }, time.Second, 5*time.Millisecond)

	h.Input() <- core.LogEntry{Time: time.Now(), Source: "sshd", Level: "error", Message: "auth failure"}
	line := waitFor("auth failure")
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.Contains(t, line, `"source":"sshd"`)

	h.Stop()
	waitFor("server_shutdown")
	assert.Equal(t, int64(0), h.GetStats().ActiveConnections)
}

func TestHTTPSink_SourceFailedDisconnect(t *testing.T) {
	h := newTestHTTPSink(t, testHTTPOptions())
	waitFor := openStream(t, serveInMemory(t, h), "/stream")

	waitFor("event: connected")
	assert.Eventually(t, func() bool { return h.GetStats().ActiveConnections == 1 }, time.Second, 5*time.Millisecond)

	h.SetEndReason(EndSourceFailed)
	h.Stop()
	waitFor("event: disconnect")
	waitFor(EndSourceFailed)
}

func TestHTTPSink_NoStreamsAfterStop(t *testing.T) {
	h := newTestHTTPSink(t, testHTTPOptions())
	require.True(t, h.enterStream())
	h.wg.Done()

	h.Stop()
	assert.False(t, h.enterStream(), "a stream arriving during shutdown must not join the wait group")
}

func TestHTTPSink_ScopedStream(t *testing.T) {
	h := newTestHTTPSink(t, testHTTPOptions())
	defer h.Stop()
	waitFor := openStream(t, serveInMemory(t, h), "/stream?min_level=error&source=sshd")

	waitFor("event: connected")
	waitFor(`"min_level":"error"`)
	assert.Eventually(t, func() bool { return h.GetStats().ActiveConnections == 1 }, time.Second, 5*time.Millisecond)

	h.Input() <- core.LogEntry{Time: time.Now(), Source: "sshd", Level: "info", Message: "session opened"}
	h.Input() <- core.LogEntry{Time: time.Now(), Source: "cron", Level: "fault", Message: "job crashed"}
	h.Input() <- core.LogEntry{Time: time.Now(), Source: "sshd", Level: "fault", Message: "key exchange failed"}

	line := waitFor("data: ")
	assert.Contains(t, line, "key exchange failed", "entries outside the scope are never queued")
	assert.Equal(t, uint64(2), h.GetStats().Details["scoped_out"])
}

func TestHTTPSink_BadStreamScope(t *testing.T) {
	h := newTestHTTPSink(t, testHTTPOptions())
	defer h.Stop()

	ctx := doRequest(h, "/stream?min_level=loud", "", "127.0.0.1")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "min_level")
}

func TestStreamScope_Admits(t *testing.T) {
	var args fasthttp.Args
	args.Parse("min_level=error&source=sshd")
	scope, err := parseStreamScope(&args)
	require.NoError(t, err)

	assert.True(t, scope.admits(core.LogEntry{Source: "sshd", Level: "error"}))
	assert.True(t, scope.admits(core.LogEntry{Source: "sshd", Level: "fault"}))
	assert.False(t, scope.admits(core.LogEntry{Source: "sshd", Level: "notice"}))
	assert.False(t, scope.admits(core.LogEntry{Source: "cron", Level: "fault"}))
	assert.False(t, scope.admits(core.LogEntry{Source: "sshd", Level: "weird"}))

	var empty fasthttp.Args
	all, err := parseStreamScope(&empty)
	require.NoError(t, err)
	assert.True(t, all.admits(core.LogEntry{Level: "weird"}))
}
