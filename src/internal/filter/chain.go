// FILE: logtrace/src/internal/filter/chain.go
package filter

import (
	"fmt"
	"sync/atomic"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain is an ordered list of filters. An entry passes only if every filter
// passes it; evaluation stops at the first rejection.
type Chain struct {
	filters []*Filter
	logger  *log.Logger

	evaluated atomic.Uint64
	passed    atomic.Uint64
}

// NewChain compiles configs in order.
func NewChain(configs []config.FilterConfig, logger *log.Logger) (*Chain, error) {
	c := &Chain{logger: logger}

	for i := range configs {
		f, err := NewFilter(configs[i], logger)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}
		c.filters = append(c.filters, f)
	}

	logger.Info("msg", "Filter chain created",
		"component", "filter_chain",
		"filter_count", len(c.filters))
	return c, nil
}

func (c *Chain) Apply(entry core.LogEntry) bool {
	c.evaluated.Add(1)

	for i, f := range c.filters {
		if f.Apply(entry) {
			continue
		}
		c.logger.Debug("msg", "Entry filtered out",
			"component", "filter_chain",
			"filter_index", i,
			"filter_type", f.kind,
			"entry_source", entry.Source)
		return false
	}

	c.passed.Add(1)
	return true
}

// GetStats returns chain totals plus per-filter statistics in chain order.
func (c *Chain) GetStats() map[string]any {
	perFilter := make([]map[string]any, 0, len(c.filters))
	for _, f := range c.filters {
		perFilter = append(perFilter, f.GetStats())
	}

	evaluated := c.evaluated.Load()
	passed := c.passed.Load()
	return map[string]any{
		"filter_count":    len(c.filters),
		"total_processed": evaluated,
		"total_passed":    passed,
		"total_rejected":  evaluated - passed,
		"filters":         perFilter,
	}
}
