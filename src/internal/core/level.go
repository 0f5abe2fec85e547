// FILE: logtrace/src/internal/core/level.go
package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Level ranks records; higher is more severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelError
	LevelFault
)

var levelNames = [...]string{"debug", "info", "notice", "error", "fault"}

// String returns the lower-case level name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelFault {
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l >= LevelDebug && l <= LevelFault
}

// ParseLevel accepts a level name (case-insensitive) or its ordinal.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelDebug, nil
	}
	for i, name := range levelNames {
		if s == name {
			return Level(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Level(n).Valid() {
		return Level(n), nil
	}
	return LevelDebug, fmt.Errorf("unknown level: %q", s)
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseLevel(name)
		if err != nil {
			return err
		}
		*l = parsed
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("level must be a name or ordinal: %w", err)
	}
	if !Level(n).Valid() {
		return fmt.Errorf("level ordinal out of range: %d", n)
	}
	*l = Level(n)
	return nil
}
