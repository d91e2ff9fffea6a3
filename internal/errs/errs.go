// Package errs classifies domain errors so transports can map them to
// HTTP statuses and CLI exit codes without string matching.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the failure class of a domain error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindAuthorityDenied
	KindRuntimeSync
	KindTransient
	KindCancelled
	KindFatal
)

// String returns the wire code for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindAuthorityDenied:
		return "AUTHORITY_DENIED"
	case KindRuntimeSync:
		return "RUNTIME_SYNC"
	case KindTransient:
		return "TRANSIENT"
	case KindCancelled:
		return "CANCELLED"
	case KindFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Error is a classified error. The format args may carry %w to keep an
// underlying cause in the chain.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }
func (e *Error) Kind() Kind    { return e.kind }

func newError(kind Kind, format string, args []any) *Error {
	return &Error{kind: kind, err: fmt.Errorf(format, args...)}
}

// Validation marks bad input: malformed ids, illegal transitions,
// schema violations.
func Validation(format string, args ...any) error {
	return newError(KindValidation, format, args)
}

// NotFound marks a missing agent, session, task, skill or provider.
func NotFound(format string, args ...any) error {
	return newError(KindNotFound, format, args)
}

// AuthorityDenied marks an actor acting outside its management chain or
// a capability the provider does not grant.
func AuthorityDenied(format string, args ...any) error {
	return newError(KindAuthorityDenied, format, args)
}

// RuntimeSync marks a failure talking to the OpenClaw runtime.
func RuntimeSync(format string, args ...any) error {
	return newError(KindRuntimeSync, format, args)
}

// Transient marks a retryable condition.
func Transient(format string, args ...any) error {
	return newError(KindTransient, format, args)
}

// Cancelled marks context cancellation or a run timeout.
func Cancelled(format string, args ...any) error {
	return newError(KindCancelled, format, args)
}

// Fatal marks an unrecoverable internal state.
func Fatal(format string, args ...any) error {
	return newError(KindFatal, format, args)
}

// KindOf walks the error chain and returns the first classified kind.
// Bare context errors classify as cancelled.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
