package errors

import (
	stderrors "errors"

	"github.com/go-errors/errors"
)

// Kind classifies an Error for the External Interface Layer's HTTP status mapping. It carries no
// meaning inside the core itself, which only ever returns *Error values and lets callers decide
// what a Kind means to them.
type Kind int

const (
	Unknown Kind = iota
	BadRequest
	NotFound
	SubjectMismatch
	VerificationFailure
	FetchFailure
	StructuralFailure
	KeyInitFailure
	SignFailure
)

// Error wraps an errors.Error with an implementation of error.Error() that always prints out the
// stack trace.
// The intent is for this type to only be used when errors are originated. Any circumstance where
// an error is being wrapped and passed up the stack can just use the `%w` formatter.
// The stack trace is printed in every build, including the federationd server, not only in tests.
type Error struct {
	error errors.Error
	kind  Kind
}

// Errorf creates a new error with the given message and an unclassified Kind.
func Errorf(format string, a ...interface{}) *Error {
	return &Error{error: *errors.Errorf(format, a...), kind: Unknown}
}

// Kindf creates a new error tagged with the given Kind, for callers that need to report it as a
// specific failure mode (see the External Interface Layer's status code mapping).
func Kindf(kind Kind, format string, a ...interface{}) *Error {
	return &Error{error: *errors.Errorf(format, a...), kind: kind}
}

// Error returns the underlying error's message and stack trace.
func (e *Error) Error() string {
	return e.error.ErrorStack()
}

// Kind returns the classification this error was created with.
func (e *Error) Kind() Kind {
	return e.kind
}

// KindOf extracts a Kind from any error, returning Unknown if err is nil or was not produced by
// this package.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.kind
	}
	return Unknown
}
