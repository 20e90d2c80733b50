/*
store.go - Persistence interfaces between the engine and the data store

PURPOSE:
  Defines the collaborator store the engine reads from and writes to. The
  engine is stateless between invocations; everything it knows comes through
  these interfaces. Implementations exist for SQLite (production) and memory
  (tests/dev).

IDEMPOTENCY CONTRACT:
  InsertMovement enforces uniqueness on (recurring_rule_id, date) and returns
  ErrDuplicateGeneration on conflict. This is THE correctness mechanism for
  concurrent generation passes: two callers may both see "no movement exists",
  but only one insert wins; the loser's error is swallowed.

  InsertAlert enforces uniqueness on (user, key, day) and returns
  ErrDuplicateAlert the same way, backing the deduplicator's check-then-insert
  against races.

OWNERSHIP:
  Every query is scoped by user id. No method ever crosses owners, so no
  cross-owner locking exists anywhere in the engine.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - generator.go: Uses RuleStore + MovementStore
  - checks.go, rules_eval.go: Use SnapshotStore + AlertStore
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// RULE STORE - Recurring rule reads and schedule advancement
// =============================================================================

type RuleStore interface {
	// DueRecurringRules returns active rules with next_occurrence <= onOrBefore.
	DueRecurringRules(ctx context.Context, userID UserID, onOrBefore Date) ([]RecurringRule, error)

	// AdvanceRule persists a rule's new next_occurrence.
	AdvanceRule(ctx context.Context, ruleID RuleID, next Date) error
}

// =============================================================================
// MOVEMENT STORE - Ledger entries and the pending lifecycle
// =============================================================================

type MovementStore interface {
	// InsertMovement persists a movement. Returns ErrDuplicateGeneration if
	// one already exists for the same (recurring_rule_id, date).
	InsertMovement(ctx context.Context, m Movement) error

	// PendingMovements returns pending movements ordered by date.
	PendingMovements(ctx context.Context, userID UserID) ([]Movement, error)

	// PendingCount returns the number of pending movements.
	PendingCount(ctx context.Context, userID UserID) (int, error)

	// ConfirmMovement flips a pending movement to confirmed. Terminal.
	// Returns ErrNotPending if the movement is not pending.
	ConfirmMovement(ctx context.Context, id MovementID) error

	// DiscardMovement deletes a pending movement entirely. Terminal.
	// Returns ErrNotPending if the movement is not pending.
	DiscardMovement(ctx context.Context, id MovementID) error
}

// =============================================================================
// SNAPSHOT STORE - Aggregates read by the condition evaluators
// =============================================================================

// SnapshotStore exposes the aggregated financial state the evaluators inspect.
// All sums cover confirmed movements only; pending entries are invisible to
// every aggregate.
type SnapshotStore interface {
	// SpendingTotal sums confirmed expenses in [from, to]. An empty categoryID
	// means all categories.
	SpendingTotal(ctx context.Context, userID UserID, from, to Date, categoryID string) (Money, error)

	// IncomeTotal sums confirmed income in [from, to].
	IncomeTotal(ctx context.Context, userID UserID, from, to Date) (Money, error)

	// AccountBalance returns income minus expenses over all confirmed
	// movements for one account (or all accounts when accountID is empty).
	AccountBalance(ctx context.Context, userID UserID, accountID string) (Money, error)

	// SavingsGoals returns the owner's goals.
	SavingsGoals(ctx context.Context, userID UserID) ([]SavingsGoal, error)

	// Investments returns the owner's investments.
	Investments(ctx context.Context, userID UserID) ([]Investment, error)

	// OpenDebts returns non-closed debts that have a due date, ordered by it.
	OpenDebts(ctx context.Context, userID UserID) ([]Debt, error)

	// CategoryName and AccountName resolve scope labels for alert messages.
	// A missing entity resolves to "".
	CategoryName(ctx context.Context, userID UserID, categoryID string) (string, error)
	AccountName(ctx context.Context, userID UserID, accountID string) (string, error)
}

// =============================================================================
// ALERT STORE - Alert persistence and dedup lookups
// =============================================================================

type AlertStore interface {
	// InsertAlert persists an alert. Returns ErrDuplicateAlert if one with
	// the same (user, key, day) already exists.
	InsertAlert(ctx context.Context, a Alert) error

	// HasRecentAlert reports whether any alert with the given key was created
	// at or after since. This backs the deduplicator; it inspects only the
	// key, never the content.
	HasRecentAlert(ctx context.Context, userID UserID, key AlertKey, since time.Time) (bool, error)
}

// =============================================================================
// ALERT RULE STORE - User-authored rules, read-mostly from the engine
// =============================================================================

type AlertRuleStore interface {
	// ActiveAlertRules returns the owner's active rules.
	ActiveAlertRules(ctx context.Context, userID UserID) ([]AlertRule, error)

	// MarkRuleTriggered stamps last_triggered_at. The only mutation the
	// engine ever performs on a rule definition (trigger mode "once").
	MarkRuleTriggered(ctx context.Context, ruleID AlertRuleID, at time.Time) error
}

// =============================================================================
// STORE - The full collaborator
// =============================================================================

type Store interface {
	RuleStore
	MovementStore
	SnapshotStore
	AlertStore
	AlertRuleStore
}
