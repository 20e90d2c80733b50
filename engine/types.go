/*
Package engine provides the core automation engine for the Gestor finance backend.

PURPOSE:
  This package contains the domain types and algorithms that turn user-defined
  recurring-transaction rules into concrete ledger movements on schedule, and
  evaluate financial condition rules into deduplicated alerts. Everything else
  in the application (account/category CRUD, export, auth, UI) lives outside
  this module and talks to the engine through the Store interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A monetary amount backed by decimal.Decimal
  - Movement: A ledger entry (income/expense/investment), pending or confirmed
  - RecurringRule identifiers and ownership scoping
  - Snapshot types read by the condition evaluators (goals, investments, debts)

DESIGN PRINCIPLES:
  1. Statelessness: The engine caches nothing between invocations
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Idempotency: Generation is keyed on (rule, date); re-runs are free
  4. Ownership: Every entity belongs to exactly one user (or workspace)

SEE ALSO:
  - schedule.go:   Occurrence calculation (pure date arithmetic)
  - generator.go:  The idempotent generation pass
  - checks.go:     Built-in condition evaluators
  - rules_eval.go: User-authored alert rule evaluation
  - dedup.go:      Time-windowed alert deduplication
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Monetary amount
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int) Money {
	return Money{Value: decimal.NewFromInt(int64(value))}
}

func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return Money{Value: d}
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money          { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money          { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool   { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool      { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool         { return m.Value.Equal(b.Value) }
func (m Money) String() string             { return m.Value.StringFixed(2) }

// PercentOf returns m/total*100, or zero when total is zero.
func (m Money) PercentOf(total Money) decimal.Decimal {
	if total.Value.IsZero() {
		return decimal.Zero
	}
	return m.Value.Div(total.Value).Mul(decimal.NewFromInt(100))
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type WorkspaceID string
type RuleID string
type MovementID string
type AlertID string
type AlertRuleID string

// =============================================================================
// MOVEMENT - A single ledger entry
// =============================================================================

type MovementKind string

const (
	KindIncome     MovementKind = "income"
	KindExpense    MovementKind = "expense"
	KindInvestment MovementKind = "investment"
)

type MovementStatus string

const (
	// StatusPending marks a movement generated by the engine, awaiting review.
	// Pending movements never count toward balances or summaries.
	StatusPending MovementStatus = "pending"

	// StatusConfirmed marks a movement accepted into the ledger.
	// User-created movements start confirmed.
	StatusConfirmed MovementStatus = "confirmed"
)

type Movement struct {
	ID          MovementID
	UserID      UserID
	WorkspaceID WorkspaceID // empty = personal scope
	AccountID   string
	Kind        MovementKind
	Amount      Money
	Date        Date
	Category    string
	Description string
	Status      MovementStatus

	// RecurringRuleID links back to the rule that generated this movement.
	// Empty for user-created movements. (RecurringRuleID, Date) is unique.
	RecurringRuleID RuleID

	// Subscription tracking (optional, user-created expense movements).
	IsSubscription      bool
	SubscriptionEndDate *Date
	AutoRenew           bool
	Provider            string

	CreatedAt Date
}

// =============================================================================
// SNAPSHOTS - Read models consumed by the condition evaluators
// =============================================================================

type SavingsGoal struct {
	ID        string
	UserID    UserID
	Name      string
	Target    Money
	Current   Money
	Completed bool
}

// Progress returns current/target*100.
func (g SavingsGoal) Progress() decimal.Decimal {
	return g.Current.PercentOf(g.Target)
}

type Investment struct {
	ID           string
	UserID       UserID
	Name         string
	BuyPrice     Money
	CurrentPrice Money
}

// ChangePercent returns (current-buy)/buy*100, or zero when buy price is zero.
func (i Investment) ChangePercent() decimal.Decimal {
	return i.CurrentPrice.Sub(i.BuyPrice).PercentOf(i.BuyPrice)
}

type Debt struct {
	ID           string
	UserID       UserID
	Counterparty string
	Amount       Money
	DueDate      *Date
	Closed       bool
}

// MonthlySummary aggregates confirmed movements for one calendar month.
type MonthlySummary struct {
	Year    int
	Month   int
	Income  Money
	Expense Money
	Net     Money
}

// ExpiringSubscription is a subscription-flagged movement close to its end date.
type ExpiringSubscription struct {
	MovementID      MovementID
	Description     string
	Provider        string
	Amount          Money
	EndDate         Date
	AutoRenew       bool
	DaysUntilExpiry int
	CategoryName    string
}
