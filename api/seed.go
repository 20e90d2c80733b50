/*
seed.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates accounts, categories,
	recurring rules, movements, and snapshot data that demonstrate specific
	engine behavior.

AVAILABLE SCENARIOS:

	fresh-start:     Two recurring rules due today, nothing else
	busy-month:      Heavy spending over the limit + pending backlog
	wealth-tracking: Goals, a losing investment, debts, subscriptions

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create accounts and categories
 3. Create recurring rules and movements
 4. Optionally add snapshot data (goals, investments, debts)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-month"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: writeJSON/writeError helpers
  - engine/engine.go: entry points the seeded data feeds
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/jmdatahub/gestor-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh-start",
		Name:        "Fresh Start",
		Description: "Salary and rent rules due today; one generation pass fills the inbox",
	},
	{
		ID:          "busy-month",
		Name:        "Busy Month",
		Description: "Spending over the monthly limit plus a pending backlog and a custom rule",
	},
	{
		ID:          "wealth-tracking",
		Name:        "Wealth Tracking",
		Description: "Savings goals near target, a losing investment, debts and subscriptions",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "fresh-start":
		err = h.loadFreshStartScenario(ctx)
	case "busy-month":
		err = h.loadBusyMonthScenario(ctx)
	case "wealth-tracking":
		err = h.loadWealthTrackingScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

const demoUser = engine.UserID("demo-user")

func (h *Handler) seedBaseline(ctx context.Context) error {
	if err := h.Store.SaveAccount(ctx, "acc-checking", demoUser, "Checking"); err != nil {
		return err
	}
	if err := h.Store.SaveAccount(ctx, "acc-savings", demoUser, "Savings"); err != nil {
		return err
	}
	categories := map[string]string{
		"cat-housing":   "Housing",
		"cat-food":      "Food",
		"cat-salary":    "Salary",
		"cat-streaming": "Streaming",
	}
	for id, name := range categories {
		if err := h.Store.SaveCategory(ctx, id, demoUser, name); err != nil {
			return err
		}
	}
	return nil
}

// loadFreshStartScenario seeds exactly two active rules whose next occurrence
// is today, so the first generation pass creates two pending movements.
func (h *Handler) loadFreshStartScenario(ctx context.Context) error {
	if err := h.seedBaseline(ctx); err != nil {
		return err
	}

	today := engine.Today()

	rules := []engine.RecurringRule{
		{
			ID:             "rule-salary",
			UserID:         demoUser,
			AccountID:      "acc-checking",
			Kind:           engine.KindIncome,
			Amount:         engine.NewMoney(2800),
			Category:       "cat-salary",
			Description:    "Monthly salary",
			Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: today.Day()},
			NextOccurrence: today,
			IsActive:       true,
			CreatedAt:      today.AddMonths(-2),
		},
		{
			ID:             "rule-rent",
			UserID:         demoUser,
			AccountID:      "acc-checking",
			Kind:           engine.KindExpense,
			Amount:         engine.NewMoney(950),
			Category:       "cat-housing",
			Description:    "Rent",
			Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: today.Day()},
			NextOccurrence: today,
			IsActive:       true,
			CreatedAt:      today.AddMonths(-2),
		},
	}
	for _, rule := range rules {
		if err := h.Store.SaveRecurringRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

// loadBusyMonthScenario seeds confirmed spending above the built-in monthly
// limit, a pending backlog large enough to trip the backlog check, and one
// active user alert rule on food spending.
func (h *Handler) loadBusyMonthScenario(ctx context.Context) error {
	if err := h.seedBaseline(ctx); err != nil {
		return err
	}

	today := engine.Today()
	monthStart := engine.StartOfMonth(today.Year(), today.Month())

	// Confirmed expenses this month: 2350 total, above the 2000 default limit.
	expenses := []struct {
		id       string
		amount   float64
		category string
		desc     string
	}{
		{"mov-rent", 950, "cat-housing", "Rent"},
		{"mov-groceries-1", 420, "cat-food", "Groceries week 1"},
		{"mov-groceries-2", 380, "cat-food", "Groceries week 2"},
		{"mov-dining", 600, "cat-food", "Team dinner and takeout"},
	}
	for _, e := range expenses {
		mov := engine.Movement{
			ID:          engine.MovementID(e.id),
			UserID:      demoUser,
			AccountID:   "acc-checking",
			Kind:        engine.KindExpense,
			Amount:      engine.NewMoney(e.amount),
			Date:        monthStart.AddDays(2),
			Category:    e.category,
			Description: e.desc,
			Status:      engine.StatusConfirmed,
			CreatedAt:   today,
		}
		if err := h.Store.InsertMovement(ctx, mov); err != nil {
			return err
		}
	}

	// Salary keeps the month from looking catastrophic in the summary.
	salary := engine.Movement{
		ID:          "mov-salary",
		UserID:      demoUser,
		AccountID:   "acc-checking",
		Kind:        engine.KindIncome,
		Amount:      engine.NewMoney(2800),
		Date:        monthStart,
		Category:    "cat-salary",
		Description: "Monthly salary",
		Status:      engine.StatusConfirmed,
		CreatedAt:   today,
	}
	if err := h.Store.InsertMovement(ctx, salary); err != nil {
		return err
	}

	// Pending backlog: three generated movements awaiting review.
	for i := 0; i < 3; i++ {
		rule := engine.RecurringRule{
			ID:             engine.RuleID(fmt.Sprintf("rule-sub-%d", i)),
			UserID:         demoUser,
			AccountID:      "acc-checking",
			Kind:           engine.KindExpense,
			Amount:         engine.NewMoney(12.99),
			Category:       "cat-streaming",
			Description:    fmt.Sprintf("Streaming service %d", i+1),
			Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: 1},
			NextOccurrence: monthStart.AddMonths(1),
			IsActive:       true,
			CreatedAt:      today.AddMonths(-3),
		}
		if err := h.Store.SaveRecurringRule(ctx, rule); err != nil {
			return err
		}
		mov := engine.Movement{
			ID:              engine.MovementID(fmt.Sprintf("mov-pending-%d", i)),
			UserID:          demoUser,
			AccountID:       "acc-checking",
			Kind:            engine.KindExpense,
			Amount:          engine.NewMoney(12.99),
			Date:            monthStart,
			Category:        "cat-streaming",
			Description:     rule.GeneratedDescription(),
			Status:          engine.StatusPending,
			RecurringRuleID: rule.ID,
			CreatedAt:       today,
		}
		if err := h.Store.InsertMovement(ctx, mov); err != nil {
			return err
		}
	}

	// A custom rule: warn when food spending passes 1000 this month.
	foodRule := engine.AlertRule{
		ID:     "arule-food",
		UserID: demoUser,
		Name:   "Food budget",
		Type:   engine.CategoryExceeds,
		Condition: engine.Condition{
			Operator:   engine.OpGT,
			Threshold:  decimal.NewFromInt(1000),
			CategoryID: "cat-food",
		},
		Severity:    engine.SeverityWarning,
		TriggerMode: engine.TriggerRepeat,
		Period:      engine.PeriodCurrentMonth,
		IsActive:    true,
	}
	return h.Store.SaveAlertRule(ctx, foodRule)
}

// loadWealthTrackingScenario seeds the snapshot side: goals near their
// targets, an investment down well past the drawdown threshold, debts with
// close due dates, and expiring subscriptions.
func (h *Handler) loadWealthTrackingScenario(ctx context.Context) error {
	if err := h.seedBaseline(ctx); err != nil {
		return err
	}

	today := engine.Today()

	goals := []engine.SavingsGoal{
		{ID: "goal-emergency", UserID: demoUser, Name: "Emergency fund", Target: engine.NewMoney(5000), Current: engine.NewMoney(4650)},
		{ID: "goal-trip", UserID: demoUser, Name: "Japan trip", Target: engine.NewMoney(3000), Current: engine.NewMoney(1200)},
	}
	for _, g := range goals {
		if err := h.Store.SaveSavingsGoal(ctx, g); err != nil {
			return err
		}
	}

	investments := []engine.Investment{
		{ID: "inv-index", UserID: demoUser, Name: "Index fund", BuyPrice: engine.NewMoney(100), CurrentPrice: engine.NewMoney(112)},
		{ID: "inv-tech", UserID: demoUser, Name: "Tech stock", BuyPrice: engine.NewMoney(80), CurrentPrice: engine.NewMoney(64)},
	}
	for _, inv := range investments {
		if err := h.Store.SaveInvestment(ctx, inv); err != nil {
			return err
		}
	}

	due := today.AddDays(5)
	debts := []engine.Debt{
		{ID: "debt-carlos", UserID: demoUser, Counterparty: "Carlos", Amount: engine.NewMoney(250), DueDate: &due},
		{ID: "debt-paid", UserID: demoUser, Counterparty: "Maria", Amount: engine.NewMoney(100), Closed: true},
	}
	for _, d := range debts {
		if err := h.Store.SaveDebt(ctx, d); err != nil {
			return err
		}
	}

	// A subscription expiring inside the default 30-day horizon.
	subEnd := today.AddDays(12)
	sub := engine.Movement{
		ID:                  "mov-sub-music",
		UserID:              demoUser,
		AccountID:           "acc-checking",
		Kind:                engine.KindExpense,
		Amount:              engine.NewMoney(9.99),
		Date:                today.AddMonths(-1),
		Category:            "cat-streaming",
		Description:         "Music streaming annual plan",
		Status:              engine.StatusConfirmed,
		IsSubscription:      true,
		SubscriptionEndDate: &subEnd,
		AutoRenew:           false,
		Provider:            "TuneBox",
		CreatedAt:           today.AddMonths(-1),
	}
	return h.Store.InsertMovement(ctx, sub)
}
