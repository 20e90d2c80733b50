/*
checks.go - Built-in condition evaluators

PURPOSE:
  The fixed set of financial checks the engine runs on every alert pass.
  Each check inspects aggregated state for one owner and either produces an
  alert draft or nothing. Checks are independent, run in any order, and are
  individually dedup-gated BEFORE evaluation so suppressed checks skip their
  aggregation work entirely.

FIRST MATCH, STOP:
  The goal/investment/debt checks raise one alert for the first qualifying
  entity and stop, to avoid flooding when many entities cross a threshold at
  once. Later passes (after the dedup window elapses) surface the next one.

DISPATCH:
  One concrete type per check, collected by BuiltinChecks(). No string-keyed
  branching anywhere.

SEE ALSO:
  - dedup.go: The per-check window gate
  - engine.go: Runs these then the user alert rules
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONDITION CHECK - One built-in evaluator
// =============================================================================

// AlertDraft is an alert before id/timestamps are assigned.
type AlertDraft struct {
	Key      AlertKey
	Title    string
	Message  string
	Severity Severity
	Metadata map[string]string
}

type ConditionCheck interface {
	// Key is the dedup key and alert type for this check.
	Key() AlertKey

	// WindowDays is the dedup window gating this check.
	WindowDays() int

	// Evaluate inspects aggregated state and returns a draft, or nil when the
	// condition does not hold.
	Evaluate(ctx context.Context, userID UserID, today Date) (*AlertDraft, error)
}

// BuiltinChecks returns the engine's fixed evaluator set. spendingLimit is
// the configured monthly expense ceiling.
func BuiltinChecks(store Store, spendingLimit Money) []ConditionCheck {
	return []ConditionCheck{
		&SpendingLimitCheck{Snapshots: store, Limit: spendingLimit},
		&PendingBacklogCheck{Movements: store},
		&SavingsGoalCheck{Snapshots: store},
		&InvestmentDropCheck{Snapshots: store},
		&DebtDueCheck{Snapshots: store},
	}
}

// =============================================================================
// SPENDING LIMIT - Confirmed expenses this month exceed the ceiling
// =============================================================================

type SpendingLimitCheck struct {
	Snapshots SnapshotStore
	Limit     Money
}

func (c *SpendingLimitCheck) Key() AlertKey   { return KeySpendingLimit }
func (c *SpendingLimitCheck) WindowDays() int { return 7 }

func (c *SpendingLimitCheck) Evaluate(ctx context.Context, userID UserID, today Date) (*AlertDraft, error) {
	from, to := MonthRange(today)
	total, err := c.Snapshots.SpendingTotal(ctx, userID, from, to, "")
	if err != nil {
		return nil, err
	}

	if !total.GreaterThan(c.Limit) {
		return nil, nil
	}
	return &AlertDraft{
		Key:      KeySpendingLimit,
		Title:    "High spending this month",
		Message:  fmt.Sprintf("You have exceeded %s in expenses this month. Current total: %s", c.Limit, total),
		Severity: SeverityWarning,
	}, nil
}

// =============================================================================
// PENDING BACKLOG - Generated movements await review
// =============================================================================

type PendingBacklogCheck struct {
	Movements MovementStore
}

func (c *PendingBacklogCheck) Key() AlertKey   { return KeyRulePending }
func (c *PendingBacklogCheck) WindowDays() int { return 1 }

func (c *PendingBacklogCheck) Evaluate(ctx context.Context, userID UserID, today Date) (*AlertDraft, error) {
	count, err := c.Movements.PendingCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, nil
	}
	return &AlertDraft{
		Key:      KeyRulePending,
		Title:    "Pending movements",
		Message:  fmt.Sprintf("You have %d automatic %s awaiting your approval.", count, plural(count, "movement", "movements")),
		Severity: SeverityInfo,
	}, nil
}

// =============================================================================
// SAVINGS GOAL PROGRESS - A goal is in the [90, 100) home stretch
// =============================================================================

type SavingsGoalCheck struct {
	Snapshots SnapshotStore
}

func (c *SavingsGoalCheck) Key() AlertKey   { return KeySavingsGoal }
func (c *SavingsGoalCheck) WindowDays() int { return 7 }

func (c *SavingsGoalCheck) Evaluate(ctx context.Context, userID UserID, today Date) (*AlertDraft, error) {
	goals, err := c.Snapshots.SavingsGoals(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, goal := range goals {
		if goal.Completed {
			continue
		}
		progress := goal.Progress()
		if progress.GreaterThanOrEqual(decimal.NewFromInt(90)) && progress.LessThan(decimal.NewFromInt(100)) {
			return &AlertDraft{
				Key:      KeySavingsGoal,
				Title:    "Goal almost reached",
				Message:  fmt.Sprintf("Your goal %q is at %s%%. Almost there!", goal.Name, progress.StringFixed(0)),
				Severity: SeverityInfo,
				Metadata: map[string]string{"goal_id": goal.ID},
			}, nil
		}
	}
	return nil, nil
}

// =============================================================================
// INVESTMENT DROP - An investment fell 10% or more below its buy price
// =============================================================================

type InvestmentDropCheck struct {
	Snapshots SnapshotStore
}

func (c *InvestmentDropCheck) Key() AlertKey   { return KeyInvestmentDrop }
func (c *InvestmentDropCheck) WindowDays() int { return 7 }

func (c *InvestmentDropCheck) Evaluate(ctx context.Context, userID UserID, today Date) (*AlertDraft, error) {
	investments, err := c.Snapshots.Investments(ctx, userID)
	if err != nil {
		return nil, err
	}

	threshold := decimal.NewFromInt(-10)
	for _, inv := range investments {
		change := inv.ChangePercent()
		if change.LessThanOrEqual(threshold) {
			return &AlertDraft{
				Key:      KeyInvestmentDrop,
				Title:    "Investment declining",
				Message:  fmt.Sprintf("%q is down %s%% from your buy price.", inv.Name, change.Abs().StringFixed(1)),
				Severity: SeverityWarning,
				Metadata: map[string]string{"investment_id": inv.ID},
			}, nil
		}
	}
	return nil, nil
}

// =============================================================================
// DEBT DUE SOON - An open debt is due within the next 7 days
// =============================================================================

type DebtDueCheck struct {
	Snapshots SnapshotStore
}

func (c *DebtDueCheck) Key() AlertKey   { return KeyDebtDue }
func (c *DebtDueCheck) WindowDays() int { return 3 }

func (c *DebtDueCheck) Evaluate(ctx context.Context, userID UserID, today Date) (*AlertDraft, error) {
	debts, err := c.Snapshots.OpenDebts(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, debt := range debts {
		if debt.DueDate == nil {
			continue
		}
		remaining := DaysBetween(today, *debt.DueDate)
		if remaining >= 0 && remaining <= 7 {
			return &AlertDraft{
				Key:      KeyDebtDue,
				Title:    "Debt due soon",
				Message:  fmt.Sprintf("The debt with %q is due in %d %s.", debt.Counterparty, remaining, plural(remaining, "day", "days")),
				Severity: SeverityWarning,
				Metadata: map[string]string{"debt_id": debt.ID},
			}, nil
		}
	}
	return nil, nil
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
