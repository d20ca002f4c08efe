// Package errs defines the error-kind taxonomy of the consensus core.
// Malformed, Unauthorized, Equivocation, Stale and Ahead are never
// surfaced past the engine boundary: callers pattern-match on the
// sentinel with errors.Is and drop or log accordingly. Invariant denotes
// corrupted internal state and is raised as an assertion failure so the
// process aborts with a stack trace rather than continuing on bad state.
package errs

import (
	"github.com/cockroachdb/errors"
)

// Sentinel error kinds, matched with errors.Is.
var (
	ErrMalformed    = errors.New("consensus: malformed message")
	ErrUnauthorized = errors.New("consensus: unauthorized sender")
	ErrEquivocation = errors.New("consensus: equivocation detected")
	ErrStale        = errors.New("consensus: stale view or height")
	ErrAhead        = errors.New("consensus: height beyond pipeline window")
	ErrCapacity     = errors.New("consensus: pipeline at capacity")
)

// Malformed wraps ErrMalformed with context.
func Malformed(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrMalformed, format, args...)
}

// Unauthorized wraps ErrUnauthorized with context.
func Unauthorized(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrUnauthorized, format, args...)
}

// Equivocation wraps ErrEquivocation with context.
func Equivocation(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrEquivocation, format, args...)
}

// Stale wraps ErrStale with context.
func Stale(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrStale, format, args...)
}

// Ahead wraps ErrAhead with context.
func Ahead(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrAhead, format, args...)
}

// Capacity wraps ErrCapacity with context.
func Capacity(format string, args ...interface{}) error {
	return errors.WithMessagef(ErrCapacity, format, args...)
}

// Invariant panics with an assertion-failure error carrying a stack trace.
// Reserved for internal state corruption that must never be reached by
// correct code; the process must not continue past it.
func Invariant(format string, args ...interface{}) {
	panic(errors.AssertionFailedWithDepthf(1, format, args...))
}
