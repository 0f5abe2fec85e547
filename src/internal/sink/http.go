// FILE: logtrace/src/internal/sink/http.go
package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"logtrace/src/internal/auth"
	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/format"
	"logtrace/src/internal/limit"
	"logtrace/src/internal/version"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// HTTPSink serves the pipeline as a Server-Sent Events stream. Each client
// gets its own buffered queue and may narrow it with min_level and source.
type HTTPSink struct {
	config    *config.HTTPSinkOptions
	formatter format.Formatter
	logger    *log.Logger
	guard     *limit.NetLimiter
	auth      *auth.Authenticator

	input    chan core.LogEntry
	server   *fasthttp.Server
	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Guards wg.Add for stream writers against Stop's wg.Wait
	gateMu   sync.Mutex
	stopping bool

	clientsMu sync.RWMutex
	clients   map[string]*sseClient
	endReason atomic.Value // string

	startTime   time.Time
	streams     atomic.Int64
	received    atomic.Uint64
	lastEntry   atomic.Value // time.Time
	droppedSlow atomic.Uint64
	scopedOut   atomic.Uint64
	authFailed  atomic.Uint64
	authOK      atomic.Uint64
}

// sseClient is one open stream. The broker only sends on queue while the
// client is registered, so the queue is never closed.
type sseClient struct {
	id      string
	remote  string
	scope   streamScope
	session *auth.Session
	queue   chan core.LogEntry
}

// NewHTTPSink creates an SSE sink. Options must have passed config validation.
func NewHTTPSink(opts *config.HTTPSinkOptions, logger *log.Logger, formatter format.Formatter) (*HTTPSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("HTTP sink options cannot be nil")
	}

	guard := limit.NewNetLimiter(opts.NetLimit, logger)
	authenticator, err := auth.New(opts.Auth, logger)
	if err != nil {
		guard.Shutdown()
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	h := &HTTPSink{
		config:    opts,
		formatter: formatter,
		logger:    logger,
		guard:     guard,
		auth:      authenticator,
		input:     make(chan core.LogEntry, opts.BufferSize),
		done:      make(chan struct{}),
		clients:   make(map[string]*sseClient),
		startTime: time.Now(),
	}
	h.lastEntry.Store(time.Time{})
	return h, nil
}

func (h *HTTPSink) Input() chan<- core.LogEntry {
	return h.input
}

// Start binds the listener synchronously so address conflicts surface as errors.
func (h *HTTPSink) Start(ctx context.Context) error {
	addr := net.JoinHostPort(h.config.Host, strconv.FormatInt(h.config.Port, 10))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.serve(ctx, ln)

	h.logger.Info("msg", "HTTP server started",
		"component", "http_sink",
		"address", ln.Addr().String(),
		"stream_path", h.config.StreamPath,
		"status_path", h.config.StatusPath,
		"auth", h.auth.Type())
	return nil
}

func (h *HTTPSink) serve(ctx context.Context, ln net.Listener) {
	h.listener = ln
	h.server = &fasthttp.Server{
		Name:         "LogTrace/" + version.Short(),
		Handler:      h.requestHandler,
		Logger:       compat.NewFastHTTPAdapter(h.logger),
		WriteTimeout: time.Duration(h.config.WriteTimeoutMS) * time.Millisecond,
	}

	h.wg.Add(1)
	go h.broker(ctx)

	go func() {
		if err := h.server.Serve(ln); err != nil {
			h.logger.Error("msg", "HTTP server failed",
				"component", "http_sink",
				"error", err)
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.done:
		}
	}()
}

// Addr returns the bound listener address, nil before Start.
func (h *HTTPSink) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *HTTPSink) Stop() {
	h.stopOnce.Do(func() {
		h.gateMu.Lock()
		h.stopping = true
		h.gateMu.Unlock()

		// Stream writers see done, send their disconnect event and deregister
		close(h.done)

		if h.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := h.server.ShutdownWithContext(ctx); err != nil {
				h.logger.Debug("msg", "HTTP server shutdown incomplete",
					"component", "http_sink",
					"error", err)
			}
			cancel()
		}
		h.wg.Wait()

		h.auth.Close()
		h.guard.Shutdown()
		h.logger.Info("msg", "HTTP sink stopped",
			"component", "http_sink",
			"port", h.config.Port)
	})
}

var _ EndNotifier = (*HTTPSink)(nil)

func (h *HTTPSink) SetEndReason(reason string) {
	h.endReason.Store(reason)
}

func (h *HTTPSink) reason() string {
	if r, _ := h.endReason.Load().(string); r != "" {
		return r
	}
	return EndShutdown
}

func (h *HTTPSink) GetStats() Stats {
	last, _ := h.lastEntry.Load().(time.Time)
	return Stats{
		Type:              "http",
		TotalProcessed:    h.received.Load(),
		ActiveConnections: h.streams.Load(),
		StartTime:         h.startTime,
		LastProcessed:     last,
		Details: map[string]any{
			"port":         h.config.Port,
			"buffer_size":  h.config.BufferSize,
			"dropped_slow": h.droppedSlow.Load(),
			"scoped_out":   h.scopedOut.Load(),
			"endpoints":    h.endpoints(),
			"net_limit":    h.guard.GetStats(),
			"auth":         h.authStats(),
		},
	}
}

func (h *HTTPSink) endpoints() map[string]string {
	return map[string]string{
		"stream": h.config.StreamPath,
		"status": h.config.StatusPath,
	}
}

// broker hands each entry to the clients whose scope admits it. A client
// with a full queue loses the entry; the pipeline is never blocked.
func (h *HTTPSink) broker(ctx context.Context) {
	defer h.wg.Done()

	for {
		var entry core.LogEntry
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case e, ok := <-h.input:
			if !ok {
				return
			}
			entry = e
		}

		h.received.Add(1)
		h.lastEntry.Store(time.Now())

		h.clientsMu.RLock()
		for _, c := range h.clients {
			if !c.scope.admits(entry) {
				h.scopedOut.Add(1)
				continue
			}
			select {
			case c.queue <- entry:
			default:
				if n := h.droppedSlow.Add(1); n%1000 == 1 {
					h.logger.Debug("msg", "SSE client queue full, entry dropped",
						"component", "http_sink",
						"client_id", c.id,
						"dropped_slow", n)
				}
			}
		}
		h.clientsMu.RUnlock()
	}
}

// enterStream adds a stream writer to wg unless Stop has begun.
func (h *HTTPSink) enterStream() bool {
	h.gateMu.Lock()
	defer h.gateMu.Unlock()
	if h.stopping {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *HTTPSink) register(c *sseClient) int64 {
	h.clientsMu.Lock()
	h.clients[c.id] = c
	h.clientsMu.Unlock()
	h.guard.AddConnection(c.remote)
	return h.streams.Add(1)
}

func (h *HTTPSink) deregister(c *sseClient) int64 {
	h.clientsMu.Lock()
	delete(h.clients, c.id)
	h.clientsMu.Unlock()
	h.guard.RemoveConnection(c.remote)
	h.auth.EndSession(c.session.ID)
	return h.streams.Add(-1)
}

func (h *HTTPSink) requestHandler(ctx *fasthttp.RequestCtx) {
	remote := ctx.RemoteAddr().String()

	if ok, code, reason := h.guard.CheckHTTP(remote); !ok {
		h.logger.Warn("msg", "Request refused by net limiter",
			"component", "http_sink",
			"remote_addr", remote,
			"status_code", code,
			"reason", reason)
		writeJSON(ctx, int(code), map[string]any{"error": reason})
		return
	}

	switch string(ctx.Path()) {
	case h.config.StatusPath:
		// Public, no auth
		h.handleStatus(ctx)
	case h.config.StreamPath:
		h.openStream(ctx, remote)
	default:
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]any{"error": "Not Found"})
	}
}

func (h *HTTPSink) openStream(ctx *fasthttp.RequestCtx, remote string) {
	session, err := h.auth.AuthenticateHTTP(string(ctx.Request.Header.Peek("Authorization")), remote)
	if err != nil {
		h.authFailed.Add(1)
		if challenge := h.challenge(); challenge != "" {
			ctx.Response.Header.Set("WWW-Authenticate", challenge)
		}
		writeJSON(ctx, fasthttp.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
		return
	}
	if h.auth != nil {
		h.authOK.Add(1)
	}

	scope, err := parseStreamScope(ctx.QueryArgs())
	if err != nil {
		h.auth.EndSession(session.ID)
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	h.handleStream(ctx, &sseClient{
		id:      uuid.NewString(),
		remote:  remote,
		scope:   scope,
		session: session,
		queue:   make(chan core.LogEntry, h.config.BufferSize),
	})
}

func (h *HTTPSink) challenge() string {
	switch h.auth.Type() {
	case "basic":
		return fmt.Sprintf("Basic realm=%q", h.auth.Realm())
	case "token", "jwt":
		return "Bearer"
	}
	return ""
}

func parseStreamScope(args *fasthttp.Args) (streamScope, error) {
	return newStreamScope(func(key string) string { return string(args.Peek(key)) })
}

func (h *HTTPSink) handleStream(ctx *fasthttp.RequestCtx, c *sseClient) {
	hdr := &ctx.Response.Header
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("X-Accel-Buffering", "no")

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		if !h.enterStream() {
			h.auth.EndSession(c.session.ID)
			writeDisconnect(w, h.reason())
			return
		}
		defer h.wg.Done()

		h.logger.Debug("msg", "SSE client connected",
			"component", "http_sink",
			"client_id", c.id,
			"remote_addr", c.remote,
			"username", c.session.Username,
			"min_level", c.scope.minLevel.String(),
			"source", c.scope.source,
			"active_clients", h.register(c))
		defer func() {
			h.logger.Debug("msg", "SSE client disconnected",
				"component", "http_sink",
				"client_id", c.id,
				"active_clients", h.deregister(c))
		}()

		if err := h.writeConnected(w, c); err != nil {
			return
		}

		var beat <-chan time.Time
		if hb := h.config.Heartbeat; hb != nil && hb.Enabled && hb.IntervalMS > 0 {
			ticker := time.NewTicker(time.Duration(hb.IntervalMS) * time.Millisecond)
			defer ticker.Stop()
			beat = ticker.C
		}

		for {
			select {
			case entry := <-c.queue:
				if err := h.writeEntry(w, entry); err != nil {
					h.logger.Error("msg", "Failed to format entry",
						"component", "http_sink",
						"client_id", c.id,
						"error", err)
					continue
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-beat:
				if !h.auth.Touch(c.session.ID) {
					writeDisconnect(w, "session_expired")
					return
				}
				if err := h.writeHeartbeat(w); err != nil {
					return
				}
			case <-h.done:
				writeDisconnect(w, h.reason())
				return
			}
		}
	})
}

func (h *HTTPSink) writeConnected(w *bufio.Writer, c *sseClient) error {
	payload, _ := json.Marshal(map[string]any{
		"client_id":   c.id,
		"username":    c.session.Username,
		"auth_method": c.session.Method,
		"endpoints":   h.endpoints(),
		"buffer_size": h.config.BufferSize,
		"min_level":   c.scope.minLevel.String(),
		"source":      c.scope.source,
	})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", payload)
	return w.Flush()
}

func writeDisconnect(w *bufio.Writer, reason string) {
	fmt.Fprintf(w, "event: disconnect\ndata: {\"reason\":%q}\n\n", reason)
	w.Flush()
}

// writeEntry emits one SSE event; multi-line output becomes multiple data lines
func (h *HTTPSink) writeEntry(w *bufio.Writer, entry core.LogEntry) error {
	out, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	for line := range bytes.SplitSeq(bytes.TrimSuffix(out, []byte{'\n'}), []byte{'\n'}) {
		w.WriteString("data: ")
		w.Write(line)
		w.WriteByte('\n')
	}
	return w.WriteByte('\n')
}

func (h *HTTPSink) writeHeartbeat(w *bufio.Writer) error {
	hb := h.config.Heartbeat
	switch {
	case hb.Format == "json":
		entry := newHeartbeatEntry("logtrace-http", hb, h.startTime, h.streams.Load())
		fmt.Fprintf(w, "event: heartbeat\ndata: %s\n\n", entry.Fields)
	case hb.IncludeTimestamp:
		fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339))
	default:
		w.WriteString(": heartbeat\n\n")
	}
	return w.Flush()
}

func (h *HTTPSink) handleStatus(ctx *fasthttp.RequestCtx) {
	heartbeat := map[string]any{"enabled": false}
	if hb := h.config.Heartbeat; hb != nil {
		heartbeat = map[string]any{
			"enabled":     hb.Enabled,
			"interval_ms": hb.IntervalMS,
			"format":      hb.Format,
		}
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"service": "LogTrace",
		"version": version.Short(),
		"listener": map[string]any{
			"port":           h.config.Port,
			"active_clients": h.streams.Load(),
			"buffer_size":    h.config.BufferSize,
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		},
		"endpoints": h.endpoints(),
		"features": map[string]any{
			"heartbeat":    heartbeat,
			"auth":         h.authStats(),
			"net_limit":    h.guard.GetStats(),
			"client_scope": []string{"min_level", "source"},
		},
		"counters": map[string]any{
			"received":     h.received.Load(),
			"dropped_slow": h.droppedSlow.Load(),
			"scoped_out":   h.scopedOut.Load(),
		},
	})
}

func (h *HTTPSink) authStats() map[string]any {
	stats := h.auth.GetStats()
	stats["failures"] = h.authFailed.Load()
	stats["successes"] = h.authOK.Load()
	return stats
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	data, _ := json.Marshal(body)
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}
