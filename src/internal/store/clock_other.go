//go:build !linux

// FILE: logtrace/src/internal/store/clock_other.go
package store

import (
	"time"

	"logtrace/src/internal/core"
)

func bootUptime() (time.Duration, error) {
	return 0, core.ErrUnsupportedPlatform
}

// Supported reports whether journald can back a provider on this host.
func Supported() bool {
	return false
}
