// FILE: logtrace/src/internal/filter/filter.go
package filter

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"logtrace/src/internal/config"
	"logtrace/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/valyala/fastjson"
)

// Filter keeps or drops entries whose selected text matches its patterns.
type Filter struct {
	kind       string
	requireAll bool
	field      string
	patterns   []*regexp.Regexp
	logger     *log.Logger

	parsers fastjson.ParserPool

	// Statistics
	evaluated atomic.Uint64
	matched   atomic.Uint64
	rejected  atomic.Uint64
}

// NewFilter compiles cfg. Type defaults to include and logic to or.
func NewFilter(cfg config.FilterConfig, logger *log.Logger) (*Filter, error) {
	f := &Filter{
		kind:     config.FilterTypeInclude,
		field:    cfg.Field,
		patterns: make([]*regexp.Regexp, len(cfg.Patterns)),
		logger:   logger,
	}
	if cfg.Type != "" {
		f.kind = cfg.Type
	}

	switch cfg.Logic {
	case "", config.FilterLogicOr:
	case config.FilterLogicAnd:
		f.requireAll = true
	default:
		return nil, fmt.Errorf("unknown filter logic '%s'", cfg.Logic)
	}

	for i, pattern := range cfg.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
		f.patterns[i] = re
	}

	logger.Debug("msg", "Filter created",
		"component", "filter",
		"type", f.kind,
		"logic", f.logic(),
		"field", f.fieldName(),
		"pattern_count", len(f.patterns))

	return f, nil
}

// Apply reports whether entry passes the filter.
func (f *Filter) Apply(entry core.LogEntry) bool {
	f.evaluated.Add(1)

	if len(f.patterns) == 0 {
		return true
	}

	hit := f.match(f.subject(entry))
	if hit {
		f.matched.Add(1)
	}

	pass := hit == (f.kind == config.FilterTypeInclude)
	if !pass {
		f.rejected.Add(1)
	}
	return pass
}

// subject picks the text the patterns run against
func (f *Filter) subject(entry core.LogEntry) string {
	switch f.field {
	case "":
		text := entry.Message
		if entry.Level != "" {
			text = entry.Level + " " + text
		}
		if entry.Source != "" {
			text = entry.Source + " " + text
		}
		return text
	case "message":
		return entry.Message
	case "source":
		return entry.Source
	case "level":
		return entry.Level
	default:
		return f.structuredField(entry)
	}
}

// structuredField reads a top-level key of the entry's JSON fields.
// Numbers are matched in their JSON form.
func (f *Filter) structuredField(entry core.LogEntry) string {
	if len(entry.Fields) == 0 {
		return ""
	}

	p := f.parsers.Get()
	defer f.parsers.Put(p)

	v, err := p.ParseBytes(entry.Fields)
	if err != nil {
		return ""
	}
	fv := v.Get(f.field)
	if fv == nil {
		return ""
	}
	if fv.Type() == fastjson.TypeString {
		return string(fv.GetStringBytes())
	}
	return fv.String()
}

func (f *Filter) match(text string) bool {
	for _, re := range f.patterns {
		hit := re.MatchString(text)
		if hit != f.requireAll {
			// First hit decides "or", first miss decides "and"
			return hit
		}
	}
	return f.requireAll
}

func (f *Filter) logic() string {
	if f.requireAll {
		return config.FilterLogicAnd
	}
	return config.FilterLogicOr
}

func (f *Filter) fieldName() string {
	if f.field == "" {
		return "all"
	}
	return f.field
}

// GetStats returns filter statistics
func (f *Filter) GetStats() map[string]any {
	return map[string]any{
		"type":            f.kind,
		"logic":           f.logic(),
		"field":           f.fieldName(),
		"pattern_count":   len(f.patterns),
		"total_processed": f.evaluated.Load(),
		"total_matched":   f.matched.Load(),
		"total_dropped":   f.rejected.Load(),
	}
}
