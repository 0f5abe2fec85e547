// FILE: logtrace/src/internal/sink/tcp.go
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"
	"logtrace/src/internal/format"
	"logtrace/src/internal/limit"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

const (
	// A peer is dropped after this many failed writes in a row
	maxConsecutiveWriteErrors = 3

	// Longest scope line a peer may send before it is disconnected
	maxScopeLineBytes = 256

	// gnet.Run returns quickly when the bind fails
	tcpBindGrace = 100 * time.Millisecond
)

// TCPSink writes formatted entries to every connected peer. Peers receive the
// whole stream until they send a scope line such as "min_level=error source=sshd".
type TCPSink struct {
	config    *config.TCPSinkOptions
	formatter format.Formatter
	logger    *log.Logger
	limiter   *limit.NetLimiter

	input chan core.LogEntry
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	engineMu sync.Mutex
	engine   *gnet.Engine

	peersMu sync.RWMutex
	peers   map[gnet.Conn]*tcpPeer

	endReason atomic.Value // string

	startTime   time.Time
	active      atomic.Int64
	processed   atomic.Uint64
	lastEntry   atomic.Value // time.Time
	writeErrors atomic.Uint64
	scoped      atomic.Uint64
}

type tcpPeer struct {
	id      string
	addr    string
	scope   atomic.Pointer[streamScope]
	pending []byte // event-loop only
	fails   atomic.Int32
}

// tcpHandler adapts gnet callbacks onto the sink.
type tcpHandler struct {
	gnet.BuiltinEventEngine
	sink *TCPSink
}

func NewTCPSink(opts *config.TCPSinkOptions, logger *log.Logger, formatter format.Formatter) (*TCPSink, error) {
	if opts == nil {
		return nil, fmt.Errorf("TCP sink options cannot be nil")
	}

	size := opts.BufferSize
	if size <= 0 {
		size = core.DefaultBufferSize
	}

	t := &TCPSink{
		config:    opts,
		formatter: formatter,
		logger:    logger,
		limiter:   limit.NewNetLimiter(opts.NetLimit, logger),
		input:     make(chan core.LogEntry, size),
		done:      make(chan struct{}),
		peers:     make(map[gnet.Conn]*tcpPeer),
		startTime: time.Now(),
	}
	t.lastEntry.Store(time.Time{})
	return t, nil
}

func (t *TCPSink) Input() chan<- core.LogEntry {
	return t.input
}

// Start launches the fan-out loop and the gnet engine. It returns an error
// when the listener cannot be bound.
func (t *TCPSink) Start(ctx context.Context) error {
	t.wg.Add(1)
	go t.fanOut(ctx)

	addr := fmt.Sprintf("tcp://%s:%d", t.config.Host, t.config.Port)
	bound := make(chan error, 1)
	go func() {
		t.logger.Info("msg", "Starting TCP server",
			"component", "tcp_sink",
			"address", addr)
		err := gnet.Run(&tcpHandler{sink: t}, addr,
			gnet.WithLogger(compat.NewGnetAdapter(t.logger)),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true))
		if err != nil {
			t.logger.Error("msg", "TCP server failed",
				"component", "tcp_sink",
				"port", t.config.Port,
				"error", err)
		}
		bound <- err
	}()

	go func() {
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.done:
		}
	}()

	select {
	case err := <-bound:
		t.Stop()
		if err == nil {
			err = errors.New("TCP server exited during startup")
		}
		return err
	case <-time.After(tcpBindGrace):
		t.logger.Info("msg", "TCP server started",
			"component", "tcp_sink",
			"port", t.config.Port)
		return nil
	}
}

var _ EndNotifier = (*TCPSink)(nil)

// SetEndReason makes Stop send peers a final entry naming reason.
func (t *TCPSink) SetEndReason(reason string) {
	t.endReason.Store(reason)
}

func (t *TCPSink) Stop() {
	t.once.Do(func() {
		close(t.done)

		if reason, _ := t.endReason.Load().(string); reason != "" {
			t.sendEnd(reason)
		}

		t.engineMu.Lock()
		eng := t.engine
		t.engineMu.Unlock()
		if eng != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := eng.Stop(ctx); err != nil {
				t.logger.Debug("msg", "gnet engine stop incomplete",
					"component", "tcp_sink",
					"error", err)
			}
			cancel()
		}

		t.wg.Wait()
		t.limiter.Shutdown()
		t.logger.Info("msg", "TCP sink stopped",
			"component", "tcp_sink",
			"port", t.config.Port)
	})
}

// sendEnd queues a last entry for every peer ahead of the engine stop.
// Delivery is best effort.
func (t *TCPSink) sendEnd(reason string) {
	line, err := t.formatter.Format(core.LogEntry{
		Time:    time.Now(),
		Source:  "logtrace-tcp",
		Level:   "fault",
		Message: "stream ended: " + reason,
	})
	if err != nil {
		return
	}
	t.deliver(line, nil)
}

func (t *TCPSink) GetStats() Stats {
	last, _ := t.lastEntry.Load().(time.Time)
	return Stats{
		Type:              "tcp",
		TotalProcessed:    t.processed.Load(),
		ActiveConnections: t.active.Load(),
		StartTime:         t.startTime,
		LastProcessed:     last,
		Details: map[string]any{
			"port":         t.config.Port,
			"buffer_size":  t.config.BufferSize,
			"write_errors": t.writeErrors.Load(),
			"scoped_skips": t.scoped.Load(),
			"net_limit":    t.limiter.GetStats(),
			"scoped_peers": t.countScoped(),
			"heartbeat":    t.heartbeatInterval() > 0,
		},
	}
}

func (t *TCPSink) heartbeatInterval() time.Duration {
	hb := t.config.Heartbeat
	if hb == nil || !hb.Enabled || hb.IntervalMS <= 0 {
		return 0
	}
	return time.Duration(hb.IntervalMS) * time.Millisecond
}

func (t *TCPSink) fanOut(ctx context.Context) {
	defer t.wg.Done()

	var beat <-chan time.Time
	if every := t.heartbeatInterval(); every > 0 {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		beat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		case entry, ok := <-t.input:
			if !ok {
				return
			}
			t.processed.Add(1)
			t.lastEntry.Store(time.Now())

			line, err := t.formatter.Format(entry)
			if err != nil {
				t.logger.Error("msg", "Failed to format entry",
					"component", "tcp_sink",
					"entry_source", entry.Source,
					"error", err)
				continue
			}
			t.deliver(line, &entry)
		case <-beat:
			hb := newHeartbeatEntry("logtrace-tcp", t.config.Heartbeat, t.startTime, t.active.Load())
			if line, err := t.formatter.Format(hb); err == nil {
				t.deliver(line, nil)
			}
		}
	}
}

// deliver queues line on every peer whose scope admits entry. A nil entry
// (heartbeat) goes to all peers.
func (t *TCPSink) deliver(line []byte, entry *core.LogEntry) {
	t.peersMu.RLock()
	defer t.peersMu.RUnlock()

	for conn, peer := range t.peers {
		if entry != nil {
			if sc := peer.scope.Load(); sc != nil && !sc.admits(*entry) {
				t.scoped.Add(1)
				continue
			}
		}
		conn.AsyncWrite(line, t.writeCallback(peer))
	}
}

func (t *TCPSink) writeCallback(peer *tcpPeer) gnet.AsyncCallback {
	return func(c gnet.Conn, err error) error {
		if err == nil {
			peer.fails.Store(0)
			return nil
		}

		t.writeErrors.Add(1)
		n := peer.fails.Add(1)
		if n < maxConsecutiveWriteErrors {
			t.logger.Debug("msg", "TCP write failed",
				"component", "tcp_sink",
				"client_id", peer.id,
				"consecutive_errors", n,
				"error", err)
			return nil
		}
		t.logger.Warn("msg", "Dropping TCP client after repeated write errors",
			"component", "tcp_sink",
			"client_id", peer.id,
			"remote_addr", peer.addr,
			"consecutive_errors", n)
		return c.Close()
	}
}

func (t *TCPSink) countScoped() int {
	t.peersMu.RLock()
	defer t.peersMu.RUnlock()
	n := 0
	for _, p := range t.peers {
		if p.scope.Load() != nil {
			n++
		}
	}
	return n
}

func (h *tcpHandler) OnBoot(eng gnet.Engine) gnet.Action {
	h.sink.engineMu.Lock()
	h.sink.engine = &eng
	h.sink.engineMu.Unlock()
	return gnet.None
}

func (h *tcpHandler) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	t := h.sink
	addr := c.RemoteAddr()

	if !t.limiter.CheckTCP(addr) {
		t.logger.Warn("msg", "TCP connection net limited",
			"component", "tcp_sink",
			"remote_addr", addr.String())
		return nil, gnet.Close
	}
	t.limiter.AddConnection(addr.String())

	peer := &tcpPeer{id: uuid.NewString(), addr: addr.String()}
	t.peersMu.Lock()
	t.peers[c] = peer
	t.peersMu.Unlock()

	t.logger.Debug("msg", "TCP client connected",
		"component", "tcp_sink",
		"client_id", peer.id,
		"remote_addr", peer.addr,
		"active_connections", t.active.Add(1))
	return nil, gnet.None
}

func (h *tcpHandler) OnClose(c gnet.Conn, err error) gnet.Action {
	t := h.sink

	t.peersMu.Lock()
	peer, tracked := t.peers[c]
	delete(t.peers, c)
	t.peersMu.Unlock()

	if !tracked {
		return gnet.None
	}

	t.limiter.RemoveConnection(peer.addr)
	t.logger.Debug("msg", "TCP client disconnected",
		"component", "tcp_sink",
		"client_id", peer.id,
		"active_connections", t.active.Add(-1),
		"error", err)
	return gnet.None
}

// OnTraffic reads scope lines. Anything else a peer sends is an error.
func (h *tcpHandler) OnTraffic(c gnet.Conn) gnet.Action {
	t := h.sink

	t.peersMu.RLock()
	peer := t.peers[c]
	t.peersMu.RUnlock()

	data, _ := c.Next(-1)
	if peer == nil {
		return gnet.None
	}
	peer.pending = append(peer.pending, data...)

	for {
		i := bytes.IndexByte(peer.pending, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSpace(peer.pending[:i]))
		peer.pending = peer.pending[i+1:]
		if line == "" {
			continue
		}

		sc, err := parseScopeLine(line)
		if err != nil {
			_, _ = c.Write([]byte("scope error: " + err.Error() + "\n"))
			continue
		}
		peer.scope.Store(&sc)
		t.logger.Debug("msg", "TCP client scope set",
			"component", "tcp_sink",
			"client_id", peer.id,
			"min_level", sc.minLevel.String(),
			"source", sc.source)
	}

	if len(peer.pending) > maxScopeLineBytes {
		t.logger.Warn("msg", "TCP client sent oversized scope line",
			"component", "tcp_sink",
			"client_id", peer.id,
			"remote_addr", peer.addr)
		return gnet.Close
	}
	return gnet.None
}
