// Package hmemerr defines the error taxonomy every public hmem operation
// fails with: exactly one Kind, wrapping a human-readable message.
package hmemerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy from spec.md §7.
type Kind string

const (
	InvalidPrefix            Kind = "InvalidPrefix"
	EmptyContent              Kind = "EmptyContent"
	CharLimitExceeded         Kind = "CharLimitExceeded"
	InvalidID                 Kind = "InvalidId"
	NotFound                  Kind = "NotFound"
	DBCorrupted               Kind = "DbCorrupted"
	ObsoleteWithoutCorrection Kind = "ObsoleteWithoutCorrection"
	CorrectionTargetMissing   Kind = "CorrectionTargetMissing"
	RoleDenied                Kind = "RoleDenied"
	InvalidTag                Kind = "InvalidTag"
	CycleDetected             Kind = "CycleDetected"
	InvalidConfig             Kind = "InvalidConfig"
)

// Error is the concrete error type every public operation returns on
// failure. Errors surface to the caller unchanged; nothing is retried
// automatically.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error wrapping an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// Is reports whether err carries the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
