package broker

import (
	"errors"
	"fmt"
)

// Sentinel errors for common broker failure conditions. They can be used
// with errors.Is() regardless of how many times they have been wrapped.
var (
	// ErrTaskNotFound indicates the task id is unknown to the broker.
	ErrTaskNotFound = errors.New("task not found")

	// ErrQueueNotFound indicates the queue name is unknown to the broker.
	ErrQueueNotFound = errors.New("queue not found")

	// ErrUnsupported indicates the backend does not implement the
	// requested operation.
	ErrUnsupported = errors.New("operation not supported by this backend")
)

// Error kinds categorize broker errors by their cause.
const (
	// KindConnection represents unreachable hosts and auth failures.
	KindConnection = "connection"

	// KindTimeout represents operations that exceeded their deadline.
	// Callers treat a timeout like a connection failure: the previous
	// snapshot is retained and the error is recorded.
	KindTimeout = "timeout"

	// KindDecode represents malformed envelopes or bodies. Decode errors
	// are per-element and recovered locally; they never abort a fetch.
	KindDecode = "decode"

	// KindNotFound represents actions against unknown tasks or queues.
	KindNotFound = "not_found"

	// KindUnsupported represents operations a backend does not implement.
	KindUnsupported = "unsupported"

	// KindValidation represents rejected inputs (bad URL, bad task id).
	KindValidation = "validation"

	// KindInternal represents invariant violations inside the monitor.
	KindInternal = "internal"
)

// Error is a structured broker error carrying the operation that failed,
// the kind of failure, and the underlying cause.
//
// Error supports errors.Is() and errors.As() through Unwrap, and matches
// other *Error values by kind, so callers can branch on categories:
//
//	if errors.Is(err, &broker.Error{Kind: broker.KindTimeout}) { ... }
type Error struct {
	// Op is the operation that failed (e.g. "redis.Tasks").
	Op string

	// Kind categorizes the failure (e.g. KindConnection).
	Kind string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("broker: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("broker: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches target *Error values by Kind (and Op when the target sets
// one), then delegates to the underlying error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}
	return errors.Is(e.Err, target)
}

// IsKind reports whether err is or wraps a broker *Error of the given kind.
func IsKind(err error, kind string) bool {
	var be *Error
	for errors.As(err, &be) {
		if be.Kind == kind {
			return true
		}
		err = be.Err
	}
	return false
}

// NewConnectionError creates an Error with KindConnection.
func NewConnectionError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConnection, Err: err}
}

// NewTimeoutError creates an Error with KindTimeout.
func NewTimeoutError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTimeout, Err: err}
}

// NewDecodeError creates an Error with KindDecode.
func NewDecodeError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindDecode, Err: err}
}

// NewNotFoundError creates an Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

// NewUnsupportedError creates an Error with KindUnsupported wrapping
// ErrUnsupported.
func NewUnsupportedError(op string) *Error {
	return &Error{Op: op, Kind: KindUnsupported, Err: ErrUnsupported}
}

// NewValidationError creates an Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewInternalError creates an Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}
