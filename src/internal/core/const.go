// FILE: logtrace/src/internal/core/const.go
package core

import "time"

// Engine defaults
const (
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultLookback         = 2 * time.Second
	DefaultMaxEventsPerPoll = 2000
	DefaultDedupeWindow     = 4096
)

// Cursor nudges, in seconds
const (
	CursorEpsilon    = 0.000001 // past the last fetched record
	CursorNowBackoff = 0.001    // behind "now" when nothing was fetched
)

// Raw field set by providers on signpost-derived records
const SignpostNameField = "signpostName"

// Pipeline defaults
const (
	DefaultBufferSize = 1000
	DefaultBcryptCost = 12
	DefaultTokenTTL   = 24 * time.Hour
)
