package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the {kind, message} envelope returned to callers.
type Kind string

const (
	KindBadRequest Kind = "BadRequest"
	KindNotFound   Kind = "NotFound"
	KindConflict   Kind = "Conflict"
	KindForbidden  Kind = "Forbidden"
	KindInternal   Kind = "Internal"
)

// Error carries a taxonomy kind and a caller-facing message.
// It survives fmt.Errorf("...: %w", err) wrapping, so repositories can
// classify at the point of failure and services can add context on the way up.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// BadRequest marks caller input that violates a documented precondition.
// Messages must be actionable: name the missing section, offending field,
// or disallowed transition.
func BadRequest(format string, args ...any) *Error { return New(KindBadRequest, format, args...) }

// NotFound marks a missing target row. Messages include the entity kind and id.
func NotFound(format string, args ...any) *Error { return New(KindNotFound, format, args...) }

// Conflict marks a lost compare-and-set race or reuse of a single-use credential.
func Conflict(format string, args ...any) *Error { return New(KindConflict, format, args...) }

// Forbidden marks a denied permission check.
func Forbidden(format string, args ...any) *Error { return New(KindForbidden, format, args...) }

// Internal marks store driver failures, reload failures, and the unexpected.
func Internal(format string, args ...any) *Error { return New(KindInternal, format, args...) }

// KindOf unwraps err and returns its taxonomy kind.
// Unclassified errors are Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
