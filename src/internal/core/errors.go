// FILE: logtrace/src/internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the tracer. Match with errors.Is.
var (
	ErrUnsupportedPlatform = errors.New("log store not supported on this platform")
	ErrDisabledInBuild     = errors.New("log tracing disabled in this build")
	ErrStoreUnavailable    = errors.New("log store unavailable")
	ErrPermissionDenied    = errors.New("log store permission denied")
	ErrIterationFailed     = errors.New("log store iteration failed")
)

// TraceError carries an error kind plus the failure that caused it.
type TraceError struct {
	Kind error
	Err  error
}

// NewTraceError wraps cause under kind. A nil cause yields the bare kind.
func NewTraceError(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &TraceError{Kind: kind, Err: cause}
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Is matches the kind; the cause chain is reachable through Unwrap.
func (e *TraceError) Is(target error) bool {
	return target == e.Kind
}

func (e *TraceError) Unwrap() error {
	return e.Err
}
