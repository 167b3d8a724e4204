// Package planerr defines the typed errors raised while translating and
// lowering plans.
package planerr

import (
	"errors"
	"fmt"
)

// Error is a compile-time rejection of a plan or expression.
//
// Compile errors fall into two categories:
//   - Unsupported: the construct has no lowering (DISTINCT aggregates, sort
//     offsets, FULL joins on the server, UNION, unknown operators)
//   - Type mismatch: operand types have no legal combination
//
// Internal contract violations are not Errors; they are assertion failures
// raised with github.com/cockroachdb/errors.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Kind names the rejected construct, e.g. "Union" or "DISTINCT aggregate".
	Kind string

	// Message is a human-readable description.
	Message string
}

// Code categorizes compile errors.
type Code string

const (
	// CodeUnsupported indicates a construct with no lowering.
	CodeUnsupported Code = "UNSUPPORTED"

	// CodeTypeMismatch indicates operand types with no legal combination.
	CodeTypeMismatch Code = "TYPE_MISMATCH"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unsupported creates an Error for a construct that cannot be lowered.
func Unsupported(kind, format string, args ...any) *Error {
	return &Error{Code: CodeUnsupported, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TypeMismatch creates an Error for incompatible operand types.
func TypeMismatch(format string, args ...any) *Error {
	return &Error{Code: CodeTypeMismatch, Message: fmt.Sprintf(format, args...)}
}

// IsUnsupported returns true if err wraps an unsupported-construct error.
func IsUnsupported(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == CodeUnsupported
}

// IsTypeMismatch returns true if err wraps a type mismatch error.
func IsTypeMismatch(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Code == CodeTypeMismatch
}

// UnsupportedKind returns the rejected construct of an unsupported error,
// or "" for any other error.
func UnsupportedKind(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe.Code == CodeUnsupported {
		return pe.Kind
	}
	return ""
}
