// Package store provides an in-memory engine.Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmdatahub/gestor-engine/engine"
)

// =============================================================================
// MEMORY STORE - Mirrors the SQLite store's uniqueness semantics
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	rules      map[engine.RuleID]engine.RecurringRule
	movements  map[engine.MovementID]engine.Movement
	alerts     map[engine.AlertID]engine.Alert
	alertRules map[engine.AlertRuleID]engine.AlertRule

	goals       []engine.SavingsGoal
	investments []engine.Investment
	debts       []engine.Debt
	categories  map[string]ownedName // id -> (owner, name)
	accounts    map[string]ownedName

	// generation and dedup uniqueness, as the SQLite indexes enforce them
	generated map[genKey]bool
	alertDays map[alertDayKey]bool
}

type ownedName struct {
	UserID engine.UserID
	Name   string
}

type genKey struct {
	RuleID engine.RuleID
	Date   string
}

type alertDayKey struct {
	UserID engine.UserID
	Key    engine.AlertKey
	Day    string
}

func NewMemory() *Memory {
	return &Memory{
		rules:      make(map[engine.RuleID]engine.RecurringRule),
		movements:  make(map[engine.MovementID]engine.Movement),
		alerts:     make(map[engine.AlertID]engine.Alert),
		alertRules: make(map[engine.AlertRuleID]engine.AlertRule),
		categories: make(map[string]ownedName),
		accounts:   make(map[string]ownedName),
		generated:  make(map[genKey]bool),
		alertDays:  make(map[alertDayKey]bool),
	}
}

// =============================================================================
// RULE STORE
// =============================================================================

// SaveRecurringRule inserts or replaces a rule (test/dev seeding).
func (m *Memory) SaveRecurringRule(_ context.Context, r engine.RecurringRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = r
	return nil
}

func (m *Memory) GetRecurringRule(_ context.Context, id engine.RuleID) (engine.RecurringRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return engine.RecurringRule{}, engine.ErrRuleNotFound
	}
	return r, nil
}

func (m *Memory) DueRecurringRules(_ context.Context, userID engine.UserID, onOrBefore engine.Date) ([]engine.RecurringRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []engine.RecurringRule
	for _, r := range m.rules {
		if r.UserID == userID && r.IsActive && r.NextOccurrence.BeforeOrEqual(onOrBefore) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextOccurrence.Before(due[j].NextOccurrence) })
	return due, nil
}

func (m *Memory) AdvanceRule(_ context.Context, ruleID engine.RuleID, next engine.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rules[ruleID]
	if !ok {
		return engine.ErrRuleNotFound
	}
	r.NextOccurrence = next
	m.rules[ruleID] = r
	return nil
}

// =============================================================================
// MOVEMENT STORE
// =============================================================================

func (m *Memory) InsertMovement(_ context.Context, mv engine.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mv.RecurringRuleID != "" {
		k := genKey{RuleID: mv.RecurringRuleID, Date: mv.Date.String()}
		if m.generated[k] {
			return engine.ErrDuplicateGeneration
		}
		m.generated[k] = true
	}
	m.movements[mv.ID] = mv
	return nil
}

func (m *Memory) GetMovement(_ context.Context, id engine.MovementID) (engine.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mv, ok := m.movements[id]
	if !ok {
		return engine.Movement{}, engine.ErrMovementNotFound
	}
	return mv, nil
}

func (m *Memory) PendingMovements(_ context.Context, userID engine.UserID) ([]engine.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []engine.Movement
	for _, mv := range m.movements {
		if mv.UserID == userID && mv.Status == engine.StatusPending {
			pending = append(pending, mv)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Date.Before(pending[j].Date) })
	return pending, nil
}

func (m *Memory) PendingCount(ctx context.Context, userID engine.UserID) (int, error) {
	pending, err := m.PendingMovements(ctx, userID)
	return len(pending), err
}

func (m *Memory) ConfirmMovement(_ context.Context, id engine.MovementID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mv, ok := m.movements[id]
	if !ok {
		return engine.ErrMovementNotFound
	}
	if mv.Status != engine.StatusPending {
		return engine.ErrNotPending
	}
	mv.Status = engine.StatusConfirmed
	m.movements[id] = mv
	return nil
}

func (m *Memory) DiscardMovement(_ context.Context, id engine.MovementID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mv, ok := m.movements[id]
	if !ok {
		return engine.ErrMovementNotFound
	}
	if mv.Status != engine.StatusPending {
		return engine.ErrNotPending
	}
	delete(m.movements, id)
	if mv.RecurringRuleID != "" {
		delete(m.generated, genKey{RuleID: mv.RecurringRuleID, Date: mv.Date.String()})
	}
	return nil
}

// =============================================================================
// SNAPSHOT STORE
// =============================================================================

func (m *Memory) SpendingTotal(_ context.Context, userID engine.UserID, from, to engine.Date, categoryID string) (engine.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := engine.ZeroMoney()
	for _, mv := range m.movements {
		if mv.UserID != userID || mv.Status != engine.StatusConfirmed || mv.Kind != engine.KindExpense {
			continue
		}
		if mv.Date.Before(from) || mv.Date.After(to) {
			continue
		}
		if categoryID != "" && mv.Category != categoryID {
			continue
		}
		total = total.Add(mv.Amount)
	}
	return total, nil
}

func (m *Memory) IncomeTotal(_ context.Context, userID engine.UserID, from, to engine.Date) (engine.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := engine.ZeroMoney()
	for _, mv := range m.movements {
		if mv.UserID != userID || mv.Status != engine.StatusConfirmed || mv.Kind != engine.KindIncome {
			continue
		}
		if mv.Date.Before(from) || mv.Date.After(to) {
			continue
		}
		total = total.Add(mv.Amount)
	}
	return total, nil
}

func (m *Memory) AccountBalance(_ context.Context, userID engine.UserID, accountID string) (engine.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	balance := engine.ZeroMoney()
	for _, mv := range m.movements {
		if mv.UserID != userID || mv.Status != engine.StatusConfirmed {
			continue
		}
		if accountID != "" && mv.AccountID != accountID {
			continue
		}
		switch mv.Kind {
		case engine.KindIncome:
			balance = balance.Add(mv.Amount)
		case engine.KindExpense:
			balance = balance.Sub(mv.Amount)
		}
	}
	return balance, nil
}

func (m *Memory) SavingsGoals(_ context.Context, userID engine.UserID) ([]engine.SavingsGoal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.SavingsGoal
	for _, g := range m.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *Memory) Investments(_ context.Context, userID engine.UserID) ([]engine.Investment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Investment
	for _, inv := range m.investments {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *Memory) OpenDebts(_ context.Context, userID engine.UserID) ([]engine.Debt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Debt
	for _, d := range m.debts {
		if d.UserID == userID && !d.Closed && d.DueDate != nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (m *Memory) CategoryName(_ context.Context, userID engine.UserID, categoryID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.categories[categoryID]; ok && c.UserID == userID {
		return c.Name, nil
	}
	return "", nil
}

func (m *Memory) AccountName(_ context.Context, userID engine.UserID, accountID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[accountID]; ok && a.UserID == userID {
		return a.Name, nil
	}
	return "", nil
}

// =============================================================================
// ALERT STORE
// =============================================================================

func (m *Memory) InsertAlert(_ context.Context, a engine.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := alertDayKey{UserID: a.UserID, Key: a.Key, Day: a.CreatedAt.UTC().Format("2006-01-02")}
	if m.alertDays[k] {
		return engine.ErrDuplicateAlert
	}
	m.alertDays[k] = true
	m.alerts[a.ID] = a
	return nil
}

func (m *Memory) HasRecentAlert(_ context.Context, userID engine.UserID, key engine.AlertKey, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, a := range m.alerts {
		if a.UserID == userID && a.Key == key && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// Alerts returns the owner's alerts newest-first (read surface for tests/dev).
func (m *Memory) Alerts(_ context.Context, userID engine.UserID) ([]engine.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.Alert
	for _, a := range m.alerts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// ALERT RULE STORE
// =============================================================================

func (m *Memory) SaveAlertRule(_ context.Context, r engine.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertRules[r.ID] = r
	return nil
}

func (m *Memory) ActiveAlertRules(_ context.Context, userID engine.UserID) ([]engine.AlertRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []engine.AlertRule
	for _, r := range m.alertRules {
		if r.UserID == userID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) MarkRuleTriggered(_ context.Context, ruleID engine.AlertRuleID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.alertRules[ruleID]
	if !ok {
		return engine.ErrAlertRuleNotFound
	}
	r.LastTriggeredAt = &at
	m.alertRules[ruleID] = r
	return nil
}

// =============================================================================
// SEEDING HELPERS (tests/dev)
// =============================================================================

func (m *Memory) AddGoal(g engine.SavingsGoal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals = append(m.goals, g)
}

func (m *Memory) AddInvestment(inv engine.Investment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.investments = append(m.investments, inv)
}

func (m *Memory) AddDebt(d engine.Debt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debts = append(m.debts, d)
}

func (m *Memory) AddCategory(id string, userID engine.UserID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[id] = ownedName{UserID: userID, Name: name}
}

func (m *Memory) AddAccount(id string, userID engine.UserID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = ownedName{UserID: userID, Name: name}
}
