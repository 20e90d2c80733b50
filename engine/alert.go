package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ALERT - A persisted notification raised by the engine
// =============================================================================

// AlertKey identifies what raised an alert: one of the built-in check keys
// below, or the id of a user-authored alert rule. The deduplicator operates
// on this key.
type AlertKey string

const (
	KeySpendingLimit  AlertKey = "spending_limit"
	KeyRulePending    AlertKey = "rule_pending"
	KeySavingsGoal    AlertKey = "savings_goal_progress"
	KeyInvestmentDrop AlertKey = "investment_drop"
	KeyDebtDue        AlertKey = "debt_due"
	KeyGeneral        AlertKey = "general"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is immutable after creation except for the IsRead flip; users may
// delete it.
type Alert struct {
	ID        AlertID
	UserID    UserID
	Key       AlertKey
	Title     string
	Message   string
	Severity  Severity
	IsRead    bool
	Metadata  map[string]string
	CreatedAt time.Time
}

// =============================================================================
// ALERT RULE - User-authored condition over financial data
// =============================================================================

type AlertRuleType string

const (
	SpendingExceeds AlertRuleType = "spending_exceeds" // monthly expenses exceed X
	IncomeBelow     AlertRuleType = "income_below"     // monthly income below X
	BalanceBelow    AlertRuleType = "balance_below"    // account balance below X
	CategoryExceeds AlertRuleType = "category_exceeds" // category spending exceeds X
	SavingsReaches  AlertRuleType = "savings_reaches"  // savings reach X% of goal
	InvestmentDrops AlertRuleType = "investment_drops" // investment down X%
	DebtDueSoon     AlertRuleType = "debt_due_soon"    // debt due within X days
)

type Operator string

const (
	OpGT  Operator = "gt"
	OpGTE Operator = "gte"
	OpLT  Operator = "lt"
	OpLTE Operator = "lte"
	OpEQ  Operator = "eq"
)

// Compare applies the operator to value against threshold.
func (op Operator) Compare(value, threshold decimal.Decimal) bool {
	switch op {
	case OpGT:
		return value.GreaterThan(threshold)
	case OpGTE:
		return value.GreaterThanOrEqual(threshold)
	case OpLT:
		return value.LessThan(threshold)
	case OpLTE:
		return value.LessThanOrEqual(threshold)
	case OpEQ:
		return value.Equal(threshold)
	default:
		return false
	}
}

type TriggerMode string

const (
	// TriggerOnce fires at most once until the rule is manually reset.
	TriggerOnce TriggerMode = "once"
	// TriggerRepeat may fire every evaluation, still dedup-gated.
	TriggerRepeat TriggerMode = "repeat"
)

type EvaluationPeriod string

const (
	PeriodCurrentMonth  EvaluationPeriod = "current_month"
	PeriodPreviousMonth EvaluationPeriod = "previous_month"
	PeriodAccumulated   EvaluationPeriod = "accumulated"
)

// Range resolves the period to a concrete [from, to] window relative to
// today. Accumulated has an open start.
func (p EvaluationPeriod) Range(today Date) (Date, Date) {
	switch p {
	case PeriodPreviousMonth:
		prev := StartOfMonth(today.Year(), today.Month()).AddDays(-1)
		return MonthRange(prev)
	case PeriodAccumulated:
		return NewDate(1970, time.January, 1), today
	default: // current_month
		return MonthRange(today)
	}
}

// Condition is the comparable part of an alert rule. Category/account scope,
// when set, must reference entities the same owner controls.
type Condition struct {
	Operator   Operator
	Threshold  decimal.Decimal
	CategoryID string // category_exceeds scope
	AccountID  string // balance_below scope
}

type AlertRule struct {
	ID          AlertRuleID
	UserID      UserID
	Name        string
	Type        AlertRuleType
	Condition   Condition
	Severity    Severity
	TriggerMode TriggerMode
	Period      EvaluationPeriod
	Description string
	IsActive    bool

	// LastTriggeredAt implements the "once" trigger mode: a firing stamps it
	// and subsequent evaluations skip the rule until it is reset.
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
}

// Key returns the dedup key for alerts raised by this rule.
func (r AlertRule) Key() AlertKey { return AlertKey("rule:" + string(r.ID)) }

// Validate checks a rule definition before persistence or evaluation.
func (r AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAlertRule)
	}
	switch r.Type {
	case SpendingExceeds, IncomeBelow, BalanceBelow, CategoryExceeds,
		SavingsReaches, InvestmentDrops, DebtDueSoon:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAlertRule, r.Type)
	}
	switch r.Condition.Operator {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidAlertRule, r.Condition.Operator)
	}
	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlertRule, r.Severity)
	}
	switch r.TriggerMode {
	case TriggerOnce, TriggerRepeat:
	default:
		return fmt.Errorf("%w: unknown trigger mode %q", ErrInvalidAlertRule, r.TriggerMode)
	}
	switch r.Period {
	case PeriodCurrentMonth, PeriodPreviousMonth, PeriodAccumulated:
	default:
		return fmt.Errorf("%w: unknown period %q", ErrInvalidAlertRule, r.Period)
	}
	if r.Type == CategoryExceeds && r.Condition.CategoryID == "" {
		return fmt.Errorf("%w: category_exceeds requires a category scope", ErrInvalidAlertRule)
	}
	return nil
}

// =============================================================================
// LABELS - Human-readable synthesis for alert titles/messages
// =============================================================================

func (t AlertRuleType) Label() string {
	switch t {
	case SpendingExceeds:
		return "monthly spending exceeds"
	case IncomeBelow:
		return "monthly income below"
	case BalanceBelow:
		return "balance below"
	case CategoryExceeds:
		return "category spending exceeds"
	case SavingsReaches:
		return "savings reach"
	case InvestmentDrops:
		return "investment drops"
	case DebtDueSoon:
		return "debt due within"
	default:
		return string(t)
	}
}

func (op Operator) Label() string {
	switch op {
	case OpGT:
		return "greater than"
	case OpGTE:
		return "at least"
	case OpLT:
		return "less than"
	case OpLTE:
		return "at most"
	case OpEQ:
		return "equal to"
	default:
		return string(op)
	}
}
