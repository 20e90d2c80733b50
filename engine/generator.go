/*
generator.go - The recurring generation pass

PURPOSE:
  Orchestrates one batch pass over due recurring rules: materialize a pending
  movement per rule (idempotently), then advance the rule's schedule. Safe to
  run arbitrarily often - typically once per dashboard load.

ALGORITHM (per pass):
  1. Select active rules with next_occurrence <= today
  2. Insert a pending movement dated next_occurrence, tagged with the rule id.
     The store's (rule, date) uniqueness makes this idempotent.
  3. Advance next_occurrence from the just-processed date, whether or not
     step 2 created anything.
  4. Return the number of movements actually created.

FAILURE SEMANTICS:
  A failure on one rule never aborts the rest of the pass. Failures are
  collected into GenerationResult.Errors; a rule whose advance failed will be
  selected again next pass and its insert idempotency-skipped.

SEE ALSO:
  - schedule.go: The pure occurrence calculator this seeds with processed dates
  - store.go: InsertMovement's uniqueness contract
*/
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// =============================================================================
// GENERATOR
// =============================================================================

// GenerationResult summarizes one pass for UI feedback.
type GenerationResult struct {
	Created int
	Errors  []RuleError
}

type Generator struct {
	Rules     RuleStore
	Movements MovementStore

	// NewID mints movement ids. Defaults to uuid.NewString.
	NewID func() string
}

func NewGenerator(store Store) *Generator {
	return &Generator{Rules: store, Movements: store, NewID: uuid.NewString}
}

// Generate runs one pass for the owner as of today.
func (g *Generator) Generate(ctx context.Context, userID UserID, today Date) (GenerationResult, error) {
	var result GenerationResult

	rules, err := g.Rules.DueRecurringRules(ctx, userID, today)
	if err != nil {
		return result, err
	}

	for _, rule := range rules {
		created, err := g.processRule(ctx, rule)
		if err != nil {
			result.Errors = append(result.Errors, RuleError{RuleID: rule.ID, Err: err})
			continue
		}
		if created {
			result.Created++
		}
	}

	return result, nil
}

func (g *Generator) processRule(ctx context.Context, rule RecurringRule) (bool, error) {
	// Malformed rules are skipped entirely: generating from them would park
	// the schedule on a bogus date.
	if err := rule.Validate(); err != nil {
		return false, err
	}

	created := false
	err := g.Movements.InsertMovement(ctx, Movement{
		ID:              MovementID(g.newID()),
		UserID:          rule.UserID,
		WorkspaceID:     rule.WorkspaceID,
		AccountID:       rule.AccountID,
		Kind:            rule.Kind,
		Amount:          rule.Amount,
		Date:            rule.NextOccurrence,
		Category:        rule.Category,
		Description:     rule.GeneratedDescription(),
		Status:          StatusPending,
		RecurringRuleID: rule.ID,
		CreatedAt:       Today(),
	})
	switch {
	case err == nil:
		created = true
	case errors.Is(err, ErrDuplicateGeneration):
		// Already generated for this (rule, date). Not a failure; the
		// schedule still advances below.
	default:
		return false, err
	}

	// Advance from the just-processed date, not from today: a rule several
	// periods behind catches up one occurrence per pass.
	next := rule.Recurrence.Next(rule.NextOccurrence)
	if err := g.Rules.AdvanceRule(ctx, rule.ID, next); err != nil {
		return created, err
	}

	return created, nil
}

func (g *Generator) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.NewString()
}
