// Package errs defines the error taxonomy of the document store.
//
// Every failure surfaced by a session operation is an *Error carrying a Code
// plus enough context (operation, entity kind, target) to diagnose it. Use
// the Is* helpers rather than comparing codes directly; they see through
// wrapping.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes store errors.
type Code string

const (
	// InvalidArgument: malformed predicate key, missing id/name for update or
	// delete, no data for insert. Never retried.
	InvalidArgument Code = "INVALID_ARGUMENT"

	// ValidationFailure: a candidate document failed its type's schema or
	// custom validator. The triggering write was not issued.
	ValidationFailure Code = "VALIDATION_FAILED"

	// NotFound: a required single row does not exist.
	NotFound Code = "NOT_FOUND"

	// NotUnique: a single-row lookup matched more than one row.
	NotUnique Code = "NOT_UNIQUE"

	// VersionRange: stored schema version outside [-1, target].
	VersionRange Code = "VERSION_RANGE"

	// MigrationStep: a migration step failed; stored version unchanged.
	MigrationStep Code = "MIGRATION_STEP_FAILED"

	// SessionClosed: operation attempted after commit or rollback.
	SessionClosed Code = "SESSION_CLOSED"

	// Unsupported: the backing store fails a compatibility check.
	Unsupported Code = "UNSUPPORTED"
)

// Error is a categorized store error.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op is the session operation that failed ("create", "search", ...).
	Op string

	// Kind is the entity kind involved, if any.
	Kind string

	// Target is the table or entity the operation addressed.
	Target string

	// Message is a human-readable description.
	Message string

	// Violations lists individual rule failures for ValidationFailure.
	Violations []string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Op != "" {
		fmt.Fprintf(&b, " [%s", e.Op)
		if e.Kind != "" {
			fmt.Fprintf(&b, " %s", e.Kind)
		}
		if e.Target != "" {
			fmt.Fprintf(&b, " %s", e.Target)
		}
		b.WriteString("]")
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if len(e.Violations) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Violations, "; "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Invalid is shorthand for New(InvalidArgument, ...).
func Invalid(format string, args ...any) *Error {
	return New(InvalidArgument, format, args...)
}

// WithOp returns err annotated with the operation context. Categorized
// errors get Op/Kind/Target filled in where empty; anything else is wrapped
// unchanged in meaning.
func WithOp(err error, op, kind, target string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		cp := *e
		if cp.Op == "" {
			cp.Op = op
		}
		if cp.Kind == "" {
			cp.Kind = kind
		}
		if cp.Target == "" {
			cp.Target = target
		}
		return &cp
	}
	return fmt.Errorf("%s %s: %w", op, kind, err)
}

// CodeOf returns the code of the outermost categorized error in err's
// chain, or "".
func CodeOf(err error) Code {
	for ; err != nil; err = errors.Unwrap(err) {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case coded:
			return e.ErrorCode()
		}
	}
	return ""
}

// coded is implemented by error types defined in other packages that belong
// to the taxonomy (migration range and step errors).
type coded interface {
	error
	ErrorCode() Code
}

// Is reports whether err belongs to the given category.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsInvalidArgument returns true for InvalidArgument errors.
func IsInvalidArgument(err error) bool { return Is(err, InvalidArgument) }

// IsValidation returns true for ValidationFailure errors.
func IsValidation(err error) bool { return Is(err, ValidationFailure) }

// IsNotFound returns true for NotFound errors.
func IsNotFound(err error) bool { return Is(err, NotFound) }

// IsNotUnique returns true for NotUnique errors.
func IsNotUnique(err error) bool { return Is(err, NotUnique) }

// IsVersionRange returns true for VersionRange errors.
func IsVersionRange(err error) bool { return Is(err, VersionRange) }

// IsMigrationStep returns true for MigrationStep errors.
func IsMigrationStep(err error) bool { return Is(err, MigrationStep) }

// IsSessionClosed returns true for SessionClosed errors.
func IsSessionClosed(err error) bool { return Is(err, SessionClosed) }
