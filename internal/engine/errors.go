package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/pushplan/internal/planerr"
)

// RuntimeError represents an error detected while a session runs.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session.
	SessionID string

	// Rule names the rule involved, if any.
	Rule string

	// Err is the underlying error, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRuleFailed indicates a rule's Apply returned an error. The
	// session continues without that rewrite.
	ErrCodeRuleFailed RuntimeErrorCode = "RULE_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.SessionID != "" && e.Rule != "" {
		return fmt.Sprintf("%s: %s (session=%s, rule=%s)", e.Code, e.Message, e.SessionID, e.Rule)
	}
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error { return e.Err }

// NewRuleError creates a RuntimeError for a failed rule application.
func NewRuleError(sessionID, rule string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeRuleFailed,
		Message:   err.Error(),
		SessionID: sessionID,
		Rule:      rule,
		Err:       err,
	}
}

// IsRuleError returns true if the error is a failed rule application.
func IsRuleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeRuleFailed
	}
	return false
}

// NoPlanError is returned when no candidate of a session lowers with a
// finite cost.
type NoPlanError struct {
	SessionID  string
	Candidates int
	// FirstUnsupported is the construct kind of the first candidate that
	// failed as unsupported, if any did.
	FirstUnsupported string
	// Cause is the error of that candidate, or of the first failing one.
	Cause error
}

// Error implements the error interface.
func (e *NoPlanError) Error() string {
	switch {
	case e.FirstUnsupported != "":
		return fmt.Sprintf("no plan for session %s: %d candidates, first unsupported: %s: %v",
			e.SessionID, e.Candidates, e.FirstUnsupported, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("no plan for session %s: %d candidates: %v", e.SessionID, e.Candidates, e.Cause)
	}
	return fmt.Sprintf("no plan for session %s: all %d candidates have infinite cost", e.SessionID, e.Candidates)
}

// Unwrap returns the cause, so planerr.IsUnsupported sees through.
func (e *NoPlanError) Unwrap() error { return e.Cause }

// IsNoPlanError returns true if the error is a NoPlanError.
func IsNoPlanError(err error) bool {
	var np *NoPlanError
	return errors.As(err, &np)
}

// newNoPlanError summarizes why none of candidates won.
func newNoPlanError(sessionID string, candidates []*Candidate) *NoPlanError {
	np := &NoPlanError{SessionID: sessionID, Candidates: len(candidates)}
	for _, c := range candidates {
		if c.Err == nil {
			continue
		}
		if kind := planerr.UnsupportedKind(c.Err); kind != "" {
			np.FirstUnsupported, np.Cause = kind, c.Err
			return np
		}
		if np.Cause == nil {
			np.Cause = c.Err
		}
	}
	return np
}
