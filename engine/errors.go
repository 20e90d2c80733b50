/*
errors.go - Centralized error types for the automation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations translate database-level failures (unique
  constraint violations, missing rows) into these errors so the engine
  can react uniformly.

ERROR CATEGORIES:
  1. Generation errors - Idempotency conflicts, malformed recurrences
  2. Lifecycle errors  - Invalid movement state transitions
  3. Store errors      - Missing entities, ownership violations

USAGE:
  if errors.Is(err, engine.ErrDuplicateGeneration) {
      // Movement already exists for this (rule, date) - not a failure.
  }

SEE ALSO:
  - generator.go: Swallows ErrDuplicateGeneration per rule
  - store.go: Interfaces whose implementations return these errors
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateGeneration is returned when a movement already exists for a
	// (recurring_rule_id, date) pair. Expected on repeated passes; the
	// generator treats it as "already handled".
	ErrDuplicateGeneration = errors.New("movement already generated for rule and date")

	// ErrDuplicateAlert is returned when an alert insert loses the dedup race
	// (same owner, key and day). Swallowed, not an error.
	ErrDuplicateAlert = errors.New("alert already raised for key today")

	// ErrInvalidRecurrence is returned for a rule whose frequency parameter is
	// missing or out of range. Such rules are skipped, never fatal.
	ErrInvalidRecurrence = errors.New("invalid recurrence definition")

	// ErrNotPending is returned when confirming or discarding a movement that
	// is not in the pending state. Confirmed movements are terminal.
	ErrNotPending = errors.New("movement is not pending")

	// ErrRuleNotFound is returned when a referenced recurring rule doesn't exist.
	ErrRuleNotFound = errors.New("recurring rule not found")

	// ErrMovementNotFound is returned when a referenced movement doesn't exist.
	ErrMovementNotFound = errors.New("movement not found")

	// ErrAlertNotFound is returned when a referenced alert doesn't exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrAlertRuleNotFound is returned when a referenced alert rule doesn't exist.
	ErrAlertRuleNotFound = errors.New("alert rule not found")

	// ErrScopeMismatch is returned when an alert rule references a category or
	// account the owner does not control.
	ErrScopeMismatch = errors.New("rule scope references entity of another owner")

	// ErrInvalidAlertRule is returned for a rule definition whose type,
	// operator, severity, trigger mode or period is unknown.
	ErrInvalidAlertRule = errors.New("invalid alert rule definition")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleError records a per-rule failure during a generation pass. The pass
// continues past it; failed rules are retried on the next invocation.
type RuleError struct {
	RuleID RuleID
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// RecurrenceError details which field of a recurrence is malformed.
type RecurrenceError struct {
	Frequency Frequency
	Field     string
	Value     int
}

func (e *RecurrenceError) Error() string {
	return fmt.Sprintf("invalid recurrence: %s=%d for frequency %q", e.Field, e.Value, e.Frequency)
}

func (e *RecurrenceError) Unwrap() error { return ErrInvalidRecurrence }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true for idempotency/dedup collisions that callers
// should swallow rather than surface.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateGeneration) ||
		errors.Is(err, ErrDuplicateAlert)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrMovementNotFound) ||
		errors.Is(err, ErrAlertNotFound) ||
		errors.Is(err, ErrAlertRuleNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRecurrence) ||
		errors.Is(err, ErrInvalidAlertRule) ||
		errors.Is(err, ErrNotPending) ||
		errors.Is(err, ErrScopeMismatch)
}
