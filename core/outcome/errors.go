package outcome

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidInput
	KindCapacityExceeded
	KindConflictingState
	KindPersistenceFailure
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidInput:
		return "InvalidInput"
	case KindCapacityExceeded:
		return "CapacityExceeded"
	case KindConflictingState:
		return "ConflictingState"
	case KindPersistenceFailure:
		return "PersistenceFailure"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Expected reports whether the kind is an ordinary business outcome
// rather than an infrastructure failure.
func (k Kind) Expected() bool { return k != KindPersistenceFailure && k != 0 }

// Sentinels usable with errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
	ErrCapacityExceeded   = &Error{Kind: KindCapacityExceeded}
	ErrConflictingState   = &Error{Kind: KindConflictingState}
	ErrPersistenceFailure = &Error{Kind: KindPersistenceFailure}
)

// Error is the typed failure returned by every planning operation.
type Error struct {
	Kind    Kind
	Op      string
	RouteID int64
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	b.WriteString(msg)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.RouteID == 0
}

// NotFound builds a NotFound error for a resource and id.
func NotFound(resource string, id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %d not found", resource, id)}
}

// Invalid builds an InvalidInput error.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// CapacityExceeded builds a CapacityExceeded error.
func CapacityExceeded(format string, args ...any) *Error {
	return &Error{Kind: KindCapacityExceeded, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a ConflictingState error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflictingState, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store or unexpected error.
func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistenceFailure, Message: msg, Err: err}
}

// CheckID rejects non-positive identifiers.
func CheckID(resource string, id int64) error {
	if id <= 0 {
		return Invalid("%s id must be positive, got %d", resource, id)
	}
	return nil
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, PersistenceFailure for untyped errors and 0 for nil.
func KindOf(err error) Kind {
	if err == nil {
		return 0
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindPersistenceFailure
}

// IsNotFound reports whether err carries the NotFound kind.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidInput reports whether err carries the InvalidInput kind.
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// IsCapacityExceeded reports whether err carries the CapacityExceeded kind.
func IsCapacityExceeded(err error) bool { return KindOf(err) == KindCapacityExceeded }

// IsConflict reports whether err carries the ConflictingState kind.
func IsConflict(err error) bool { return KindOf(err) == KindConflictingState }

// Normalize converts any error into an *Error stamped with op and routeID.
// Typed errors keep their kind; everything else becomes PersistenceFailure.
func Normalize(op string, routeID int64, err error) *Error {
	if err == nil {
		return nil
	}
	e, ok := As(err)
	if !ok {
		return &Error{Kind: KindPersistenceFailure, Op: op, RouteID: routeID, Message: "unexpected failure", Err: err}
	}
	out := *e
	if out.Op == "" {
		out.Op = op
	}
	if out.RouteID == 0 {
		out.RouteID = routeID
	}
	return &out
}
