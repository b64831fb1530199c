// Package errors defines the error taxonomy of the messaging core.
// Every failure surfaced to a caller wraps exactly one of the sentinel
// errors below, so transports can map it to a specific wire kind.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrValidation  = fmt.Errorf("validation failed")
	ErrNotFound    = fmt.Errorf("not found")
	ErrPermission  = fmt.Errorf("permission denied")
	ErrTransport   = fmt.Errorf("transport failure")
	ErrConflict    = fmt.Errorf("sequence conflict")
	ErrWorkerPanic = fmt.Errorf("worker panic")
)

func Validationf(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Permissionf(format string, args ...any) error {
	return wrap(ErrPermission, format, args...)
}

func Transportf(format string, args ...any) error {
	return wrap(ErrTransport, format, args...)
}

// Conflictf signals a duplicate sequence assignment. Never expected in
// correct operation: observing it aborts the offending room's writer.
func Conflictf(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// KindOf maps any error to the wire-level kind carried in error frames
// and used for HTTP status selection.
func KindOf(err error) string {
	switch {
	case stderrors.Is(err, ErrValidation):
		return "validation"
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	case stderrors.Is(err, ErrPermission):
		return "permission"
	case stderrors.Is(err, ErrTransport):
		return "transport"
	case stderrors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// Is re-exports the standard classification helper so callers never need
// both this package and the standard one.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
