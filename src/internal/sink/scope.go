// FILE: logtrace/src/internal/sink/scope.go
package sink

import (
	"fmt"
	"strings"

	"logtrace/src/internal/core"
)

// streamScope narrows what one network client receives. SSE clients set it
// through query parameters, TCP clients by sending a scope line.
type streamScope struct {
	minLevel core.Level
	source   string
}

// newStreamScope builds a scope from the min_level and source keys.
func newStreamScope(lookup func(key string) string) (streamScope, error) {
	var sc streamScope
	if v := lookup("min_level"); v != "" {
		lvl, err := core.ParseLevel(v)
		if err != nil {
			return sc, fmt.Errorf("min_level: %w", err)
		}
		sc.minLevel = lvl
	}
	sc.source = lookup("source")
	return sc, nil
}

// parseScopeLine reads "min_level=error source=sshd". Unknown keys are
// rejected so a typo does not silently widen the stream.
func parseScopeLine(line string) (streamScope, error) {
	pairs := make(map[string]string)
	for _, tok := range strings.Fields(line) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return streamScope{}, fmt.Errorf("expected key=value, got %q", tok)
		}
		switch key {
		case "min_level", "source":
			pairs[key] = value
		default:
			return streamScope{}, fmt.Errorf("unknown scope key %q", key)
		}
	}
	return newStreamScope(func(key string) string { return pairs[key] })
}

// admits treats entries with an unknown level as debug.
func (sc streamScope) admits(entry core.LogEntry) bool {
	if sc.source != "" && entry.Source != sc.source {
		return false
	}
	if sc.minLevel == core.LevelDebug {
		return true
	}
	lvl, err := core.ParseLevel(entry.Level)
	return err == nil && lvl >= sc.minLevel
}
