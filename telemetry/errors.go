package telemetry

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("telemetry: not found")
	ErrMalformed    = errors.New("telemetry: malformed region")
	ErrTimeout      = errors.New("telemetry: timed out")
	ErrTypeMismatch = errors.New("telemetry: type mismatch")
	ErrOutOfBounds  = errors.New("telemetry: out of bounds")
	ErrUnknownType  = errors.New("telemetry: unknown value type")
	ErrCatalogStale = errors.New("telemetry: variable catalog stale")
	ErrNoNewData    = errors.New("telemetry: no new data")
	ErrInactive     = errors.New("telemetry: simulator not active")
	ErrClosed       = errors.New("telemetry: connection closed")
)

// TimeoutError reports that an operation gave up after its budget. It
// matches ErrTimeout with errors.Is.
type TimeoutError struct {
	Op       string // "select" or "wait"
	Elapsed  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("telemetry: %s timed out after %dms (%d attempts)", e.Op, e.Elapsed.Milliseconds(), e.Attempts)
}

// ElapsedMs returns the time spent before giving up, in milliseconds.
func (e *TimeoutError) ElapsedMs() int64 { return e.Elapsed.Milliseconds() }

func (e *TimeoutError) Timeout() bool { return true }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// VarError attaches a variable name to a catalog or decode failure.
type VarError struct {
	Name string
	Err  error
}

func (e *VarError) Error() string {
	return fmt.Sprintf("variable %q: %v", e.Name, e.Err)
}

func (e *VarError) Unwrap() error { return e.Err }
