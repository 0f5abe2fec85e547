// FILE: logtrace/src/internal/limit/net.go
package limit

import (
	"context"
	"math"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"logtrace/src/internal/config"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// DenialReason indicates why a request was denied
type DenialReason string

const (
	ReasonAllowed           DenialReason = ""
	ReasonBlacklisted       DenialReason = "IP denied by blacklist"
	ReasonNotWhitelisted    DenialReason = "IP not in whitelist"
	ReasonRateLimited       DenialReason = "Rate limit exceeded"
	ReasonConnectionLimited DenialReason = "Connection limit exceeded"
	ReasonInvalidIP         DenialReason = "Invalid IP address"
)

const (
	// Idle addresses without open streams are forgotten after this long
	addrIdleTimeout = 5 * time.Minute
	sweepInterval   = time.Minute
)

// Stats bucket for each denial reason
var reasonBuckets = map[DenialReason]string{
	ReasonBlacklisted:       "acl",
	ReasonNotWhitelisted:    "acl",
	ReasonRateLimited:       "rate_limit",
	ReasonConnectionLimited: "conn_limit",
	ReasonInvalidIP:         "invalid_ip",
}

// NetLimiter guards a network sink: IP ACLs, per-IP request rate and
// concurrent stream limits. A nil *NetLimiter allows everything.
type NetLimiter struct {
	cfg    config.NetLimitConfig
	acl    *ACL
	logger *log.Logger

	mu      sync.Mutex
	addrs   map[netip.Addr]*addrState
	streams int64

	requests atomic.Uint64
	denied   map[string]*atomic.Uint64

	stop  context.CancelFunc
	swept chan struct{}
}

// addrState is everything tracked for one client address.
type addrState struct {
	bucket   *rate.Limiter // nil until rate limiting first applies
	streams  int64
	lastSeen time.Time
}

// NewNetLimiter returns nil when cfg is nil or configures neither limits nor ACL rules.
func NewNetLimiter(cfg *config.NetLimitConfig, logger *log.Logger) *NetLimiter {
	if cfg == nil {
		return nil
	}
	acl := NewACL(cfg.IPWhitelist, cfg.IPBlacklist, logger)
	if acl == nil && !cfg.Enabled {
		return nil
	}

	ctx, stop := context.WithCancel(context.Background())
	l := &NetLimiter{
		cfg:    *cfg,
		acl:    acl,
		logger: logger,
		addrs:  make(map[netip.Addr]*addrState),
		denied: make(map[string]*atomic.Uint64),
		stop:   stop,
		swept:  make(chan struct{}),
	}
	for _, bucket := range reasonBuckets {
		if l.denied[bucket] == nil {
			l.denied[bucket] = new(atomic.Uint64)
		}
	}

	if cfg.Enabled {
		go l.sweepLoop(ctx)
	} else {
		close(l.swept)
	}

	wl, bl := acl.Rules()
	logger.Info("msg", "Net limiter initialized",
		"component", "netlimit",
		"rate_limiting", cfg.Enabled,
		"whitelist_rules", wl,
		"blacklist_rules", bl,
		"requests_per_second", cfg.RequestsPerSecond,
		"burst_size", cfg.BurstSize,
		"max_connections_per_ip", cfg.MaxConnectionsPerIP,
		"max_connections_total", cfg.MaxConnectionsTotal)
	return l
}

// Shutdown stops the idle address sweep.
func (l *NetLimiter) Shutdown() {
	if l == nil {
		return
	}
	l.stop()
	select {
	case <-l.swept:
	case <-time.After(2 * time.Second):
		l.logger.Warn("msg", "Net limiter sweep did not stop in time", "component", "netlimit")
	}
}

// CheckHTTP decides whether an HTTP request from remoteAddr ("host:port") may proceed.
// Denials carry the status code and message to answer with.
func (l *NetLimiter) CheckHTTP(remoteAddr string) (allowed bool, statusCode int64, message string) {
	if l == nil {
		return true, 0, ""
	}

	ip, ok := parseRemote(remoteAddr)
	if !ok {
		l.logger.Warn("msg", "Unparseable remote address",
			"component", "netlimit",
			"remote_addr", remoteAddr)
	}

	switch reason := l.decide(ip, ok); reason {
	case ReasonAllowed:
		return true, 0, ""
	case ReasonBlacklisted, ReasonNotWhitelisted, ReasonInvalidIP:
		return false, 403, string(reason)
	case ReasonRateLimited:
		if l.cfg.ResponseMessage != "" {
			return false, l.responseCode(), l.cfg.ResponseMessage
		}
		return false, l.responseCode(), string(reason)
	default:
		return false, l.responseCode(), string(reason)
	}
}

// CheckTCP decides whether a new TCP connection may be accepted.
func (l *NetLimiter) CheckTCP(remoteAddr net.Addr) bool {
	if l == nil {
		return true
	}
	ip, ok := addrOf(remoteAddr)
	return l.decide(ip, ok) == ReasonAllowed
}

// decide counts the request and any denial.
func (l *NetLimiter) decide(ip netip.Addr, valid bool) DenialReason {
	l.requests.Add(1)

	reason := ReasonInvalidIP
	if valid {
		reason = l.evaluate(ip)
	}
	if reason != ReasonAllowed {
		l.denied[reasonBuckets[reason]].Add(1)
	}
	return reason
}

func (l *NetLimiter) evaluate(ip netip.Addr) DenialReason {
	if reason := l.acl.Check(ip); reason != ReasonAllowed {
		return reason
	}
	if !l.cfg.Enabled {
		return ReasonAllowed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if maxTotal := l.cfg.MaxConnectionsTotal; maxTotal > 0 && l.streams >= maxTotal {
		return ReasonConnectionLimited
	}
	st := l.addrs[ip]
	if maxPer := l.cfg.MaxConnectionsPerIP; maxPer > 0 && st != nil && st.streams >= maxPer {
		return ReasonConnectionLimited
	}

	if l.cfg.RequestsPerSecond <= 0 {
		return ReasonAllowed
	}
	if st == nil {
		st = l.trackLocked(ip)
	}
	st.lastSeen = time.Now()
	if st.bucket == nil {
		st.bucket = rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.burst())
	}
	if !st.bucket.Allow() {
		return ReasonRateLimited
	}
	return ReasonAllowed
}

func (l *NetLimiter) burst() int {
	if l.cfg.BurstSize > 0 {
		return int(l.cfg.BurstSize)
	}
	return max(1, int(math.Ceil(l.cfg.RequestsPerSecond)))
}

func (l *NetLimiter) trackLocked(ip netip.Addr) *addrState {
	st := &addrState{lastSeen: time.Now()}
	l.addrs[ip] = st
	l.logger.Debug("msg", "Tracking client address",
		"component", "netlimit",
		"ip", ip.String(),
		"tracked", len(l.addrs))
	return st
}

// AddConnection records a long-lived stream opened by remoteAddr.
func (l *NetLimiter) AddConnection(remoteAddr string) {
	if l == nil {
		return
	}
	ip, ok := parseRemote(remoteAddr)
	if !ok {
		return
	}

	l.mu.Lock()
	st := l.addrs[ip]
	if st == nil {
		st = l.trackLocked(ip)
	}
	st.streams++
	st.lastSeen = time.Now()
	l.streams++
	l.mu.Unlock()
}

// RemoveConnection releases a stream recorded by AddConnection.
func (l *NetLimiter) RemoveConnection(remoteAddr string) {
	if l == nil {
		return
	}
	ip, ok := parseRemote(remoteAddr)
	if !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.addrs[ip]
	if st == nil || st.streams == 0 {
		return
	}
	st.streams--
	st.lastSeen = time.Now()
	l.streams--
}

func (l *NetLimiter) GetStats() map[string]any {
	if l == nil {
		return map[string]any{"enabled": false}
	}

	l.mu.Lock()
	tracked, streams := len(l.addrs), l.streams
	l.mu.Unlock()

	breakdown := make(map[string]uint64, len(l.denied))
	var blocked uint64
	for bucket, n := range l.denied {
		breakdown[bucket] = n.Load()
		blocked += breakdown[bucket]
	}

	wl, bl := l.acl.Rules()
	return map[string]any{
		"enabled":           true,
		"total_requests":    l.requests.Load(),
		"total_blocked":     blocked,
		"blocked_breakdown": breakdown,
		"active_ips":        tracked,
		"total_connections": streams,
		"acl": map[string]int{
			"whitelist_rules": wl,
			"blacklist_rules": bl,
		},
		"rate_limit": map[string]any{
			"enabled":             l.cfg.Enabled,
			"requests_per_second": l.cfg.RequestsPerSecond,
			"burst_size":          l.cfg.BurstSize,
		},
	}
}

func (l *NetLimiter) responseCode() int64 {
	if l.cfg.ResponseCode == 0 {
		return 429
	}
	return l.cfg.ResponseCode
}

// sweep forgets addresses that have no open streams and have been idle.
func (l *NetLimiter) sweep(now time.Time) {
	cutoff := now.Add(-addrIdleTimeout)

	l.mu.Lock()
	removed := 0
	for ip, st := range l.addrs {
		if st.streams == 0 && st.lastSeen.Before(cutoff) {
			delete(l.addrs, ip)
			removed++
		}
	}
	remaining := len(l.addrs)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("msg", "Forgot idle client addresses",
			"component", "netlimit",
			"removed", removed,
			"remaining", remaining)
	}
}

func (l *NetLimiter) sweepLoop(ctx context.Context) {
	defer close(l.swept)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

// addrOf extracts the client IP from a listener's remote address.
func addrOf(a net.Addr) (netip.Addr, bool) {
	switch v := a.(type) {
	case nil:
		return netip.Addr{}, false
	case *net.TCPAddr:
		ip, ok := netip.AddrFromSlice(v.IP)
		return ip.Unmap(), ok
	default:
		return parseRemote(a.String())
	}
}

// parseRemote accepts "host:port" or a bare address
func parseRemote(remoteAddr string) (netip.Addr, bool) {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return ap.Addr().Unmap(), true
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}
