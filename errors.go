package umbra3d

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the failures the engine core can report.
type ErrorKind int

const (
	ErrInvalidArgument ErrorKind = iota // Nonsensical parameters (incompatible skeleton share, min > max LOD index, etc)
	ErrItemNotFound                     // A lookup by name missed (no such animation, bone, sub-entity, registered type...)
	ErrDuplicateItem                    // An attach or creation collided with an existing name
	ErrInvalidState                     // An operation on an object in the wrong phase (un-built static geometry, negative software animation count...)
	ErrInternal                         // A file-format inconsistency or other internal contradiction
	ErrNotImplemented                   // A default implementation that a concrete type did not override
)

func (kind ErrorKind) String() string {
	switch kind {
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrItemNotFound:
		return "item not found"
	case ErrDuplicateItem:
		return "duplicate item"
	case ErrInvalidState:
		return "invalid state"
	case ErrInternal:
		return "internal error"
	case ErrNotImplemented:
		return "not implemented"
	}
	return "unknown error"
}

// Error is the concrete error type returned by the engine core. It carries a
// kind for programmatic matching and a human-readable description.
type Error struct {
	Kind    ErrorKind
	Message string
	Wrapped error
}

func (err *Error) Error() string {
	if err.Wrapped != nil {
		return err.Kind.String() + ": " + err.Message + ": " + err.Wrapped.Error()
	}
	return err.Kind.String() + ": " + err.Message
}

func (err *Error) Unwrap() error {
	return err.Wrapped
}

// newError creates an Error of the given kind with a formatted message.
func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError creates an Error of the given kind wrapping an underlying error.
func wrapError(kind ErrorKind, wrapped error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: wrapped}
}

// IsKind reports whether err (or any error it wraps) is an engine Error of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind == kind
	}
	return false
}
