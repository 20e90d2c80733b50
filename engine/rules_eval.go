/*
rules_eval.go - User-authored alert rule evaluation

PURPOSE:
  Generalizes the built-in checks into a data-driven rule a user can author:
  type + operator + threshold + optional category/account scope + period +
  severity + trigger mode. The engine evaluates rules read-only, except in
  trigger mode "once" where a firing stamps last_triggered_at on the rule.

EVALUATION:
  1. Resolve the rule's period to a concrete date range
  2. Aggregate the quantity the rule type names, filtered by scope
  3. Compare against the condition threshold with the condition operator
  4. Apply the trigger mode, then hand the draft to the dedup-gated inserter

SEE ALSO:
  - alert.go: Rule types, operators, periods
  - checks.go: The built-in counterparts these generalize
*/
package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE EVALUATOR
// =============================================================================

type RuleEvaluator struct {
	Snapshots SnapshotStore
	Rules     AlertRuleStore
}

func NewRuleEvaluator(store Store) *RuleEvaluator {
	return &RuleEvaluator{Snapshots: store, Rules: store}
}

// RuleOutcome reports one evaluation: whether the rule fired and the
// aggregate value it was compared against.
type RuleOutcome struct {
	Fired bool
	Value decimal.Decimal
	Draft *AlertDraft
}

// Evaluate runs one rule for its owner as of today. Trigger mode "once" is
// honored here; the time-windowed dedup gate stays the caller's job.
func (e *RuleEvaluator) Evaluate(ctx context.Context, rule AlertRule, today Date) (RuleOutcome, error) {
	if rule.TriggerMode == TriggerOnce && rule.LastTriggeredAt != nil {
		return RuleOutcome{}, nil
	}

	value, err := e.aggregate(ctx, rule, today)
	if err != nil {
		return RuleOutcome{}, err
	}

	outcome := RuleOutcome{Value: value}
	if !rule.Condition.Operator.Compare(value, rule.Condition.Threshold) {
		return outcome, nil
	}

	draft, err := e.draft(ctx, rule, value)
	if err != nil {
		return outcome, err
	}
	outcome.Fired = true
	outcome.Draft = draft
	return outcome, nil
}

// aggregate resolves the financial quantity the rule type names.
func (e *RuleEvaluator) aggregate(ctx context.Context, rule AlertRule, today Date) (decimal.Decimal, error) {
	from, to := rule.Period.Range(today)

	switch rule.Type {
	case SpendingExceeds:
		total, err := e.Snapshots.SpendingTotal(ctx, rule.UserID, from, to, "")
		return total.Value, err

	case CategoryExceeds:
		total, err := e.Snapshots.SpendingTotal(ctx, rule.UserID, from, to, rule.Condition.CategoryID)
		return total.Value, err

	case IncomeBelow:
		total, err := e.Snapshots.IncomeTotal(ctx, rule.UserID, from, to)
		return total.Value, err

	case BalanceBelow:
		balance, err := e.Snapshots.AccountBalance(ctx, rule.UserID, rule.Condition.AccountID)
		return balance.Value, err

	case SavingsReaches:
		goals, err := e.Snapshots.SavingsGoals(ctx, rule.UserID)
		if err != nil {
			return decimal.Zero, err
		}
		// Best progress across incomplete goals.
		best := decimal.Zero
		for _, g := range goals {
			if g.Completed {
				continue
			}
			if p := g.Progress(); p.GreaterThan(best) {
				best = p
			}
		}
		return best, nil

	case InvestmentDrops:
		investments, err := e.Snapshots.Investments(ctx, rule.UserID)
		if err != nil {
			return decimal.Zero, err
		}
		// Deepest drop, expressed as a positive percentage.
		worst := decimal.Zero
		for _, inv := range investments {
			if change := inv.ChangePercent(); change.IsNegative() {
				if drop := change.Abs(); drop.GreaterThan(worst) {
					worst = drop
				}
			}
		}
		return worst, nil

	case DebtDueSoon:
		debts, err := e.Snapshots.OpenDebts(ctx, rule.UserID)
		if err != nil {
			return decimal.Zero, err
		}
		// Days until the nearest upcoming due date; no upcoming debt
		// compares as a huge distance so lte thresholds stay false.
		nearest := decimal.NewFromInt(1 << 30)
		for _, d := range debts {
			if d.DueDate == nil {
				continue
			}
			remaining := DaysBetween(today, *d.DueDate)
			if remaining >= 0 && decimal.NewFromInt(int64(remaining)).LessThan(nearest) {
				nearest = decimal.NewFromInt(int64(remaining))
			}
		}
		return nearest, nil

	default:
		return decimal.Zero, fmt.Errorf("unknown alert rule type %q", rule.Type)
	}
}

// draft synthesizes the alert title/message from rule name, type label,
// threshold and scope context.
func (e *RuleEvaluator) draft(ctx context.Context, rule AlertRule, value decimal.Decimal) (*AlertDraft, error) {
	scope := ""
	if rule.Condition.CategoryID != "" {
		name, err := e.Snapshots.CategoryName(ctx, rule.UserID, rule.Condition.CategoryID)
		if err != nil {
			return nil, err
		}
		if name != "" {
			scope = fmt.Sprintf(" in %q", name)
		}
	}
	if rule.Condition.AccountID != "" {
		name, err := e.Snapshots.AccountName(ctx, rule.UserID, rule.Condition.AccountID)
		if err != nil {
			return nil, err
		}
		if name != "" {
			scope = fmt.Sprintf(" on %q", name)
		}
	}

	return &AlertDraft{
		Key:      rule.Key(),
		Title:    rule.Name,
		Severity: rule.Severity,
		Message: fmt.Sprintf("%s %s %s%s: current value %s.",
			rule.Type.Label(),
			rule.Condition.Operator.Label(),
			rule.Condition.Threshold.String(),
			scope,
			value.StringFixed(2)),
		Metadata: map[string]string{"alert_rule_id": string(rule.ID)},
	}, nil
}
