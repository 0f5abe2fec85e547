// FILE: logtrace/src/internal/limit/net_test.go
package limit

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"logtrace/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNetLimiter_NilWhenUnconfigured(t *testing.T) {
	logger := log.NewLogger()

	assert.Nil(t, NewNetLimiter(nil, logger))
	assert.Nil(t, NewNetLimiter(&config.NetLimitConfig{}, logger))
	// Only invalid ACL entries
	assert.Nil(t, NewNetLimiter(&config.NetLimitConfig{IPWhitelist: []string{"not-an-ip"}}, logger))

	var l *NetLimiter
	allowed, _, _ := l.CheckHTTP("10.0.0.1:1234")
	assert.True(t, allowed)
	assert.True(t, l.CheckTCP(&net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 1}))
	assert.Equal(t, false, l.GetStats()["enabled"])
	l.Shutdown()
}

func TestACL(t *testing.T) {
	acl := NewACL([]string{"10.0.0.0/8", "192.168.1.5"}, []string{"10.1.0.0/16"}, log.NewLogger())
	require.NotNil(t, acl)

	tests := []struct {
		ip     string
		reason DenialReason
	}{
		{"10.0.0.1", ReasonAllowed},
		{"192.168.1.5", ReasonAllowed},
		{"192.168.1.6", ReasonNotWhitelisted},
		{"10.1.2.3", ReasonBlacklisted},
		{"::ffff:10.0.0.1", ReasonAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.reason, acl.Check(netip.MustParseAddr(tt.ip)))
		})
	}

	wl, bl := acl.Rules()
	assert.Equal(t, 2, wl)
	assert.Equal(t, 1, bl)
}

func TestNetLimiter_CheckHTTP_ACL(t *testing.T) {
	l := NewNetLimiter(&config.NetLimitConfig{IPBlacklist: []string{"203.0.113.0/24"}}, log.NewLogger())
	require.NotNil(t, l)
	defer l.Shutdown()

	allowed, code, msg := l.CheckHTTP("203.0.113.9:5000")
	assert.False(t, allowed)
	assert.Equal(t, int64(403), code)
	assert.Equal(t, string(ReasonBlacklisted), msg)

	allowed, _, _ = l.CheckHTTP("198.51.100.1:5000")
	assert.True(t, allowed)

	allowed, code, _ = l.CheckHTTP("garbage")
	assert.False(t, allowed)
	assert.Equal(t, int64(403), code)
}

func TestNetLimiter_RateLimit(t *testing.T) {
	l := NewNetLimiter(&config.NetLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.01,
		BurstSize:         2,
		ResponseCode:      503,
		ResponseMessage:   "slow down",
	}, log.NewLogger())
	require.NotNil(t, l)
	defer l.Shutdown()

	for range 2 {
		allowed, _, _ := l.CheckHTTP("10.0.0.1:1000")
		assert.True(t, allowed)
	}

	allowed, code, msg := l.CheckHTTP("10.0.0.1:1001")
	assert.False(t, allowed)
	assert.Equal(t, int64(503), code)
	assert.Equal(t, "slow down", msg)

	// Limits are per IP
	allowed, _, _ = l.CheckHTTP("10.0.0.2:1000")
	assert.True(t, allowed)

	stats := l.GetStats()
	assert.Equal(t, uint64(4), stats["total_requests"])
	assert.Equal(t, uint64(1), stats["blocked_breakdown"].(map[string]uint64)["rate_limit"])
	assert.Equal(t, 2, stats["active_ips"])
}

func TestNetLimiter_ConnectionLimits(t *testing.T) {
	l := NewNetLimiter(&config.NetLimitConfig{
		Enabled:             true,
		MaxConnectionsPerIP: 1,
		MaxConnectionsTotal: 2,
	}, log.NewLogger())
	require.NotNil(t, l)
	defer l.Shutdown()

	l.AddConnection("10.0.0.1:1000")
	allowed, code, msg := l.CheckHTTP("10.0.0.1:1001")
	assert.False(t, allowed)
	assert.Equal(t, int64(429), code)
	assert.Equal(t, string(ReasonConnectionLimited), msg)

	l.AddConnection("10.0.0.2:1000")
	assert.False(t, l.CheckTCP(&net.TCPAddr{IP: net.ParseIP("10.0.0.3"), Port: 1}), "total limit reached")

	l.RemoveConnection("10.0.0.1:1000")
	allowed, _, _ = l.CheckHTTP("10.0.0.1:1002")
	assert.True(t, allowed)
	assert.Equal(t, int64(1), l.GetStats()["total_connections"])

	// Removing an untracked address is a no-op
	l.RemoveConnection("10.9.9.9:1")
	assert.Equal(t, int64(1), l.GetStats()["total_connections"])
}

func TestNetLimiter_SweepKeepsOpenStreams(t *testing.T) {
	l := NewNetLimiter(&config.NetLimitConfig{Enabled: true, RequestsPerSecond: 5}, log.NewLogger())
	require.NotNil(t, l)
	defer l.Shutdown()

	allowed, _, _ := l.CheckHTTP("10.0.0.1:1000")
	require.True(t, allowed)
	l.AddConnection("10.0.0.2:1000")
	assert.Equal(t, 2, l.GetStats()["active_ips"])

	l.sweep(time.Now().Add(addrIdleTimeout + time.Second))
	assert.Equal(t, 1, l.GetStats()["active_ips"], "address with an open stream survives")

	l.RemoveConnection("10.0.0.2:1000")
	l.sweep(time.Now().Add(addrIdleTimeout + time.Second))
	assert.Equal(t, 0, l.GetStats()["active_ips"])
}

func TestNetLimiter_InvalidTCPAddr(t *testing.T) {
	l := NewNetLimiter(&config.NetLimitConfig{Enabled: true}, log.NewLogger())
	require.NotNil(t, l)
	defer l.Shutdown()

	assert.False(t, l.CheckTCP(nil))
	assert.Equal(t, uint64(1), l.GetStats()["blocked_breakdown"].(map[string]uint64)["invalid_ip"])
}
