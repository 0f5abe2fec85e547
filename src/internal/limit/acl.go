// FILE: logtrace/src/internal/limit/acl.go
package limit

import (
	"net/netip"
	"strings"

	"github.com/lixenwraith/log"
)

// ACL holds IP whitelist and blacklist rules. Blacklist wins over whitelist.
type ACL struct {
	whitelist []netip.Prefix
	blacklist []netip.Prefix
	logger    *log.Logger
}

// NewACL parses single addresses or CIDR ranges. Invalid entries are logged and skipped.
// Returns nil when no valid rule remains.
func NewACL(whitelist, blacklist []string, logger *log.Logger) *ACL {
	a := &ACL{logger: logger}
	a.whitelist = parsePrefixes(whitelist, "whitelist", logger)
	a.blacklist = parsePrefixes(blacklist, "blacklist", logger)

	if len(a.whitelist) == 0 && len(a.blacklist) == 0 {
		return nil
	}
	return a
}

func parsePrefixes(entries []string, listType string, logger *log.Logger) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)

		if !strings.Contains(entry, "/") {
			addr, err := netip.ParseAddr(entry)
			if err != nil {
				logger.Warn("msg", "Invalid IP entry",
					"component", "netlimit",
					"list", listType,
					"entry", entry)
				continue
			}
			addr = addr.Unmap()
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			logger.Warn("msg", "Invalid CIDR entry",
				"component", "netlimit",
				"list", listType,
				"entry", entry,
				"error", err)
			continue
		}
		out = append(out, prefix.Masked())
	}
	return out
}

// Check returns ReasonAllowed or the reason the address is denied.
func (a *ACL) Check(ip netip.Addr) DenialReason {
	if a == nil {
		return ReasonAllowed
	}
	ip = ip.Unmap()

	for _, p := range a.blacklist {
		if p.Contains(ip) {
			a.logger.Debug("msg", "IP denied by blacklist",
				"component", "netlimit",
				"ip", ip.String(),
				"rule", p.String())
			return ReasonBlacklisted
		}
	}

	if len(a.whitelist) == 0 {
		return ReasonAllowed
	}
	for _, p := range a.whitelist {
		if p.Contains(ip) {
			return ReasonAllowed
		}
	}
	a.logger.Debug("msg", "IP not in whitelist",
		"component", "netlimit",
		"ip", ip.String())
	return ReasonNotWhitelisted
}

// Rules returns the number of whitelist and blacklist rules.
func (a *ACL) Rules() (whitelist, blacklist int) {
	if a == nil {
		return 0, 0
	}
	return len(a.whitelist), len(a.blacklist)
}
