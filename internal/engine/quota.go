package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts rule applications in one session and enforces a
// maximum.
//
// Each session gets its own QuotaEnforcer. The quota is checked before every
// rule application, productive or not.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
// Typical default: DefaultMaxSteps (configurable via WithMaxSteps).
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(sessionID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			SessionID: sessionID,
			Steps:     q.current,
			Limit:     q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a session exceeds the max steps quota.
//
// Exploration stops, but the candidates derived so far are still costed:
// a truncated search yields a worse plan, not no plan.
type StepsExceededError struct {
	SessionID string
	Steps     int
	Limit     int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("session %s exceeded max steps quota: %d steps > %d limit",
		e.SessionID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
