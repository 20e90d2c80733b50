package engine

// =============================================================================
// RECURRING RULE - User-defined template for periodic movements
// =============================================================================

// RecurringRule periodically materializes a pending movement. The engine
// advances NextOccurrence but never deletes or deactivates a rule; toggling
// IsActive is a user action.
type RecurringRule struct {
	ID          RuleID
	UserID      UserID
	WorkspaceID WorkspaceID // empty = personal scope
	AccountID   string
	Kind        MovementKind // income or expense
	Amount      Money
	Category    string
	Description string
	Recurrence  Recurrence

	// NextOccurrence is always a concrete date at or after the date last
	// used to generate from this rule.
	NextOccurrence Date
	IsActive       bool
	CreatedAt      Date
}

// Validate checks rule invariants before generation or persistence.
func (r RecurringRule) Validate() error {
	if err := r.Recurrence.Validate(); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return &RecurrenceError{Frequency: r.Recurrence.Frequency, Field: "amount", Value: 0}
	}
	return nil
}

// GeneratedDescription returns the description stamped on movements created
// from this rule, marked so the UI can distinguish them from manual entries.
func (r RecurringRule) GeneratedDescription() string {
	if r.Description != "" {
		return "(auto) " + r.Description
	}
	return "(auto) recurring movement"
}
