// FILE: logtrace/src/internal/auth/guard.go
package auth

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

const (
	maxTrackedPeers = 10000

	// 5 attempts per minute, burst of 3
	attemptInterval = 12 * time.Second
	attemptBurst    = 3

	// Blocks double per offence up to 2^maxBlockShift minutes
	maxBlockShift = 6

	peerForgetAfter = time.Hour
)

// attemptGuard throttles authentication attempts per client IP. Peers that
// exhaust their attempt budget are blocked for a growing period.
type attemptGuard struct {
	mu     sync.Mutex
	peers  map[string]*peerState
	logger *log.Logger
}

type peerState struct {
	attempts     *rate.Limiter
	offences     int
	lastSeen     time.Time
	blockedUntil time.Time
}

func newAttemptGuard(logger *log.Logger) *attemptGuard {
	return &attemptGuard{
		peers:  make(map[string]*peerState),
		logger: logger,
	}
}

// admit consumes one attempt for ip, failing with ErrRateLimited while the
// peer is blocked or out of budget.
func (g *attemptGuard) admit(ip string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	peer := g.peers[ip]
	if peer == nil {
		if len(g.peers) >= maxTrackedPeers {
			g.evictStalestLocked()
		}
		peer = &peerState{attempts: rate.NewLimiter(rate.Every(attemptInterval), attemptBurst)}
		g.peers[ip] = peer
	}
	peer.lastSeen = now

	if wait := peer.blockedUntil.Sub(now); wait > 0 {
		g.logger.Warn("msg", "IP temporarily blocked",
			"component", "auth",
			"ip", ip,
			"remaining", wait)
		return fmt.Errorf("%w: try again in %v", ErrRateLimited, wait.Round(time.Second))
	}

	if peer.attempts.AllowN(now, 1) {
		return nil
	}

	peer.offences++
	block := time.Minute << min(peer.offences, maxBlockShift)
	peer.blockedUntil = now.Add(block)
	g.logger.Warn("msg", "Rate limit exceeded, blocking IP",
		"component", "auth",
		"ip", ip,
		"offences", peer.offences,
		"block_duration", block)
	return ErrRateLimited
}

func (g *attemptGuard) failed(ip string) {
	g.mu.Lock()
	if peer := g.peers[ip]; peer != nil {
		peer.offences++
	}
	g.mu.Unlock()
}

// succeeded clears the peer's record so earlier mistakes stop counting.
func (g *attemptGuard) succeeded(ip string) {
	g.mu.Lock()
	if peer := g.peers[ip]; peer != nil {
		peer.offences = 0
		peer.blockedUntil = time.Time{}
	}
	g.mu.Unlock()
}

// prune forgets peers that are neither blocked nor recently seen.
func (g *attemptGuard) prune(now time.Time) {
	g.mu.Lock()
	for ip, peer := range g.peers {
		if now.Sub(peer.lastSeen) > peerForgetAfter && now.After(peer.blockedUntil) {
			delete(g.peers, ip)
		}
	}
	g.mu.Unlock()
}

func (g *attemptGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.peers)
}

// evictStalestLocked drops the least recently seen peer among a small sample
// of the map, which is enough to bound memory.
func (g *attemptGuard) evictStalestLocked() {
	const sample = 20

	var victim string
	var oldest time.Time
	n := 0
	for ip, peer := range g.peers {
		if victim == "" || peer.lastSeen.Before(oldest) {
			victim, oldest = ip, peer.lastSeen
		}
		if n++; n >= sample {
			break
		}
	}
	delete(g.peers, victim)
}

func hostOf(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
