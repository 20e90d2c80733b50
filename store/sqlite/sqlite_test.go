package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmdatahub/gestor-engine/engine"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func d(year int, month time.Month, day int) engine.Date {
	return engine.NewDate(year, month, day)
}

func money(v int) engine.Money { return engine.NewMoneyFromInt(v) }

func seedMovement(t *testing.T, s *Store, m engine.Movement) {
	t.Helper()
	require.NoError(t, s.InsertMovement(context.Background(), m))
}

// =============================================================================
// RECURRING RULES
// =============================================================================

func TestRecurringRules_SaveDueAdvance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rule := engine.RecurringRule{
		ID:             "rule-1",
		UserID:         "user-1",
		Kind:           engine.KindExpense,
		Amount:         money(1200),
		Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: 1},
		NextOccurrence: d(2024, time.March, 1),
		IsActive:       true,
	}
	require.NoError(t, s.SaveRecurringRule(ctx, rule))

	// Due on a later date, not due before.
	due, err := s.DueRecurringRules(ctx, "user-1", d(2024, time.March, 5))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, engine.RuleID("rule-1"), due[0].ID)
	assert.Equal(t, d(2024, time.March, 1), due[0].NextOccurrence)
	assert.True(t, due[0].Amount.Equal(money(1200)))

	due, err = s.DueRecurringRules(ctx, "user-1", d(2024, time.February, 28))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Advance moves it out of the due window.
	require.NoError(t, s.AdvanceRule(ctx, "rule-1", d(2024, time.April, 1)))
	due, err = s.DueRecurringRules(ctx, "user-1", d(2024, time.March, 5))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Toggled-off rules are never due.
	require.NoError(t, s.SetRuleActive(ctx, "rule-1", false))
	due, err = s.DueRecurringRules(ctx, "user-1", d(2024, time.May, 1))
	require.NoError(t, err)
	assert.Empty(t, due)

	assert.ErrorIs(t, s.AdvanceRule(ctx, "missing", d(2024, time.May, 1)), engine.ErrRuleNotFound)
}

// =============================================================================
// MOVEMENTS - Generation uniqueness and the pending lifecycle
// =============================================================================

func TestInsertMovement_GenerationUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mv := engine.Movement{
		ID:              "mv-1",
		UserID:          "user-1",
		Kind:            engine.KindExpense,
		Amount:          money(100),
		Date:            d(2024, time.March, 1),
		Status:          engine.StatusPending,
		RecurringRuleID: "rule-1",
	}
	require.NoError(t, s.InsertMovement(ctx, mv))

	// Same (rule, date) under a different id conflicts.
	mv.ID = "mv-2"
	err := s.InsertMovement(ctx, mv)
	assert.ErrorIs(t, err, engine.ErrDuplicateGeneration)

	// A different date for the same rule is fine.
	mv.ID = "mv-3"
	mv.Date = d(2024, time.April, 1)
	assert.NoError(t, s.InsertMovement(ctx, mv))

	// Manual movements carry no rule id and never conflict on date.
	seedMovement(t, s, engine.Movement{
		ID: "mv-4", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(5), Date: d(2024, time.March, 1), Status: engine.StatusConfirmed,
	})
	seedMovement(t, s, engine.Movement{
		ID: "mv-5", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(5), Date: d(2024, time.March, 1), Status: engine.StatusConfirmed,
	})
}

func TestMovementLifecycle_Terminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedMovement(t, s, engine.Movement{
		ID: "mv-1", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(100), Date: d(2024, time.March, 1), Status: engine.StatusPending,
	})

	require.NoError(t, s.ConfirmMovement(ctx, "mv-1"))

	// Confirmed is terminal: neither transition applies again.
	assert.ErrorIs(t, s.ConfirmMovement(ctx, "mv-1"), engine.ErrNotPending)
	assert.ErrorIs(t, s.DiscardMovement(ctx, "mv-1"), engine.ErrNotPending)

	// Missing movements are reported as such.
	assert.ErrorIs(t, s.ConfirmMovement(ctx, "missing"), engine.ErrMovementNotFound)
	assert.ErrorIs(t, s.DiscardMovement(ctx, "missing"), engine.ErrMovementNotFound)
}

func TestAggregates_PendingInvisibleDiscardedGone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	from, to := d(2024, time.June, 1), d(2024, time.June, 30)

	seedMovement(t, s, engine.Movement{
		ID: "mv-confirmed", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(100), Date: d(2024, time.June, 5), Status: engine.StatusPending,
	})
	seedMovement(t, s, engine.Movement{
		ID: "mv-pending", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(40), Date: d(2024, time.June, 6), Status: engine.StatusPending,
	})
	seedMovement(t, s, engine.Movement{
		ID: "mv-discarded", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(7), Date: d(2024, time.June, 7), Status: engine.StatusPending,
	})

	require.NoError(t, s.ConfirmMovement(ctx, "mv-confirmed"))
	require.NoError(t, s.DiscardMovement(ctx, "mv-discarded"))

	// Only the confirmed movement is visible to aggregates.
	total, err := s.SpendingTotal(ctx, "user-1", from, to, "")
	require.NoError(t, err)
	assert.True(t, total.Equal(money(100)), "got %s", total)

	count, err := s.PendingCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The discarded movement is gone entirely.
	_, err = s.GetMovement(ctx, "mv-discarded")
	assert.ErrorIs(t, err, engine.ErrMovementNotFound)
}

func TestSpendingTotal_CategoryScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedMovement(t, s, engine.Movement{
		ID: "mv-1", UserID: "user-1", Kind: engine.KindExpense, Category: "cat-food",
		Amount: money(30), Date: d(2024, time.June, 5), Status: engine.StatusConfirmed,
	})
	seedMovement(t, s, engine.Movement{
		ID: "mv-2", UserID: "user-1", Kind: engine.KindExpense, Category: "cat-rent",
		Amount: money(900), Date: d(2024, time.June, 6), Status: engine.StatusConfirmed,
	})

	total, err := s.SpendingTotal(ctx, "user-1", d(2024, time.June, 1), d(2024, time.June, 30), "cat-food")
	require.NoError(t, err)
	assert.True(t, total.Equal(money(30)))
}

// =============================================================================
// ALERTS - Day uniqueness and reads
// =============================================================================

func TestInsertAlert_DayUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	at := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	alert := engine.Alert{
		ID: "a-1", UserID: "user-1", Key: engine.KeySpendingLimit,
		Title: "t", Message: "m", Severity: engine.SeverityWarning, CreatedAt: at,
	}
	require.NoError(t, s.InsertAlert(ctx, alert))

	// Same key, same day: the concurrent-pass race loser.
	alert.ID = "a-2"
	alert.CreatedAt = at.Add(3 * time.Hour)
	assert.ErrorIs(t, s.InsertAlert(ctx, alert), engine.ErrDuplicateAlert)

	// Same key on another day is fine.
	alert.ID = "a-3"
	alert.CreatedAt = at.AddDate(0, 0, 1)
	assert.NoError(t, s.InsertAlert(ctx, alert))

	// Another key on the original day is fine.
	alert.ID = "a-4"
	alert.Key = engine.KeyDebtDue
	alert.CreatedAt = at
	assert.NoError(t, s.InsertAlert(ctx, alert))
}

func TestHasRecentAlert_Window(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertAlert(ctx, engine.Alert{
		ID: "a-1", UserID: "user-1", Key: engine.KeySpendingLimit,
		Title: "t", Message: "m", Severity: engine.SeverityWarning,
		CreatedAt: now.AddDate(0, 0, -2),
	}))

	recent, err := s.HasRecentAlert(ctx, "user-1", engine.KeySpendingLimit, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.True(t, recent, "an alert 2 days back is inside a 7 day window")

	recent, err = s.HasRecentAlert(ctx, "user-1", engine.KeySpendingLimit, now.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.False(t, recent, "an alert 2 days back is outside a 1 day window")
}

func TestAlerts_ReadLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	for i, key := range []engine.AlertKey{engine.KeySpendingLimit, engine.KeyDebtDue, engine.KeySavingsGoal} {
		require.NoError(t, s.InsertAlert(ctx, engine.Alert{
			ID:     engine.AlertID([]string{"a-1", "a-2", "a-3"}[i]),
			UserID: "user-1", Key: key, Title: "t", Message: "m",
			Severity: engine.SeverityInfo, CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Metadata: map[string]string{"n": "1"},
		}))
	}

	alerts, err := s.Alerts(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, engine.AlertID("a-3"), alerts[0].ID, "newest first")
	assert.Equal(t, map[string]string{"n": "1"}, alerts[0].Metadata)

	count, err := s.UnreadAlertCount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, s.MarkAlertRead(ctx, "a-1"))
	count, _ = s.UnreadAlertCount(ctx, "user-1")
	assert.Equal(t, 2, count)

	require.NoError(t, s.MarkAllAlertsRead(ctx, "user-1"))
	count, _ = s.UnreadAlertCount(ctx, "user-1")
	assert.Equal(t, 0, count)

	require.NoError(t, s.DeleteAlert(ctx, "a-2"))
	alerts, _ = s.Alerts(ctx, "user-1")
	assert.Len(t, alerts, 2)

	assert.ErrorIs(t, s.MarkAlertRead(ctx, "missing"), engine.ErrAlertNotFound)
	assert.ErrorIs(t, s.DeleteAlert(ctx, "missing"), engine.ErrAlertNotFound)
}

// =============================================================================
// ALERT RULES
// =============================================================================

func TestAlertRules_RoundTripAndTrigger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rule := engine.AlertRule{
		ID:     "ar-1",
		UserID: "user-1",
		Name:   "Food budget",
		Type:   engine.CategoryExceeds,
		Condition: engine.Condition{
			Operator:   engine.OpGT,
			Threshold:  decimal.NewFromInt(300),
			CategoryID: "cat-food",
		},
		Severity:    engine.SeverityWarning,
		TriggerMode: engine.TriggerOnce,
		Period:      engine.PeriodCurrentMonth,
		IsActive:    true,
	}
	require.NoError(t, s.SaveAlertRule(ctx, rule))

	got, err := s.GetAlertRule(ctx, "ar-1")
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.Type, got.Type)
	assert.Equal(t, rule.Condition.Operator, got.Condition.Operator)
	assert.True(t, got.Condition.Threshold.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "cat-food", got.Condition.CategoryID)
	assert.Nil(t, got.LastTriggeredAt)

	at := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.MarkRuleTriggered(ctx, "ar-1", at))

	got, err = s.GetAlertRule(ctx, "ar-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastTriggeredAt)
	assert.Equal(t, at, got.LastTriggeredAt.UTC())

	// Deactivated rules disappear from the engine's view but not the list.
	require.NoError(t, s.SetAlertRuleActive(ctx, "ar-1", false))
	active, err := s.ActiveAlertRules(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := s.ListAlertRules(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteAlertRule(ctx, "ar-1"))
	_, err = s.GetAlertRule(ctx, "ar-1")
	assert.ErrorIs(t, err, engine.ErrAlertRuleNotFound)
}

// =============================================================================
// SUBSCRIPTIONS AND SUMMARIES
// =============================================================================

func TestExpiringSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	today := d(2024, time.June, 15)

	end := d(2024, time.June, 20)
	past := d(2024, time.June, 10)
	far := d(2024, time.August, 1)

	require.NoError(t, s.SaveCategory(ctx, "cat-media", "user-1", "Media"))

	seedMovement(t, s, engine.Movement{
		ID: "sub-1", UserID: "user-1", Kind: engine.KindExpense, Category: "cat-media",
		Amount: money(12), Date: d(2024, time.May, 20), Status: engine.StatusConfirmed,
		Description: "Streaming", IsSubscription: true, SubscriptionEndDate: &end,
		Provider: "streamco",
	})
	seedMovement(t, s, engine.Movement{
		ID: "sub-2", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(9), Date: d(2024, time.May, 1), Status: engine.StatusConfirmed,
		IsSubscription: true, SubscriptionEndDate: &past,
	})
	seedMovement(t, s, engine.Movement{
		ID: "sub-3", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(9), Date: d(2024, time.May, 1), Status: engine.StatusConfirmed,
		IsSubscription: true, SubscriptionEndDate: &far,
	})

	subs, err := s.ExpiringSubscriptions(ctx, "user-1", today, 30)
	require.NoError(t, err)
	require.Len(t, subs, 1, "already expired and beyond the horizon are excluded")
	assert.Equal(t, engine.MovementID("sub-1"), subs[0].MovementID)
	assert.Equal(t, 5, subs[0].DaysUntilExpiry)
	assert.Equal(t, "Media", subs[0].CategoryName)

	// Renewal pushes the end date out of the horizon.
	require.NoError(t, s.RenewSubscription(ctx, "sub-1", d(2024, time.September, 20)))
	subs, err = s.ExpiringSubscriptions(ctx, "user-1", today, 30)
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, s.SetAutoRenew(ctx, "sub-1", true))
	mv, err := s.GetMovement(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, mv.AutoRenew)

	// Non-subscription movements cannot be renewed.
	seedMovement(t, s, engine.Movement{
		ID: "mv-plain", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(5), Date: today, Status: engine.StatusConfirmed,
	})
	assert.ErrorIs(t, s.RenewSubscription(ctx, "mv-plain", far), engine.ErrMovementNotFound)
}

func TestMonthlySummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedMovement(t, s, engine.Movement{
		ID: "mv-1", UserID: "user-1", Kind: engine.KindIncome,
		Amount: money(3000), Date: d(2024, time.June, 1), Status: engine.StatusConfirmed,
	})
	seedMovement(t, s, engine.Movement{
		ID: "mv-2", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(1100), Date: d(2024, time.June, 5), Status: engine.StatusConfirmed,
	})
	// Next month, out of range.
	seedMovement(t, s, engine.Movement{
		ID: "mv-3", UserID: "user-1", Kind: engine.KindExpense,
		Amount: money(999), Date: d(2024, time.July, 1), Status: engine.StatusConfirmed,
	})

	summary, err := s.MonthlySummary(ctx, "user-1", 2024, time.June)
	require.NoError(t, err)
	assert.True(t, summary.Income.Equal(money(3000)))
	assert.True(t, summary.Expense.Equal(money(1100)))
	assert.True(t, summary.Net.Equal(money(1900)))
}

// =============================================================================
// OWNERS AND ENGINE RUNS
// =============================================================================

func TestOwnersAndEngineRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRecurringRule(ctx, engine.RecurringRule{
		ID: "rule-1", UserID: "user-a", Kind: engine.KindExpense, Amount: money(10),
		Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: 1},
		NextOccurrence: d(2024, time.June, 1), IsActive: true,
	}))
	seedMovement(t, s, engine.Movement{
		ID: "mv-1", UserID: "user-b", Kind: engine.KindExpense,
		Amount: money(5), Date: d(2024, time.June, 1), Status: engine.StatusConfirmed,
	})

	owners, err := s.Owners(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []engine.UserID{"user-a", "user-b"}, owners)

	started := time.Date(2024, time.June, 15, 6, 0, 0, 0, time.UTC)
	run := EngineRun{
		ID: "run-1", UserID: "user-a", Status: RunPending, StartedAt: started,
	}
	require.NoError(t, s.SaveEngineRun(ctx, run))

	run.Status = RunCompleted
	run.CreatedCount = 2
	run.CompletedAt = started.Add(time.Second)
	require.NoError(t, s.SaveEngineRun(ctx, run))

	runs, err := s.ListEngineRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1, "upsert by id, not a second row")
	assert.Equal(t, RunCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].CreatedCount)
}
