//go:build linux

// FILE: logtrace/src/internal/store/clock_linux.go
package store

import (
	"time"

	"golang.org/x/sys/unix"
)

// bootUptime reads CLOCK_BOOTTIME, which keeps counting across suspend.
func bootUptime() (time.Duration, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return 0, err
	}
	return time.Duration(ts.Nano()), nil
}

// Supported reports whether journald can back a provider on this host.
func Supported() bool {
	return true
}
