package engine_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmdatahub/gestor-engine/engine"
	"github.com/jmdatahub/gestor-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// newTestEngine pins the clock so dedup windows and "today" are deterministic.
func newTestEngine(mem *store.Memory, at time.Time) *engine.Engine {
	eng := engine.New(mem, engine.Options{})
	eng.Now = func() time.Time { return at }
	eng.Dedup = &engine.StoreDeduplicator{Alerts: mem, Now: eng.Now}

	seq := 0
	eng.NewID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	eng.Generator.NewID = eng.NewID
	return eng
}

func alertKeys(t *testing.T, mem *store.Memory, userID engine.UserID) []engine.AlertKey {
	t.Helper()
	alerts, err := mem.Alerts(context.Background(), userID)
	require.NoError(t, err)
	keys := make([]engine.AlertKey, 0, len(alerts))
	for _, a := range alerts {
		keys = append(keys, a.Key)
	}
	return keys
}

// =============================================================================
// SCHEDULED GENERATION
// =============================================================================

func TestEngine_RunScheduledGeneration(t *testing.T) {
	now := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := newTestEngine(mem, now)
	ctx := context.Background()

	require.NoError(t, mem.SaveRecurringRule(ctx, engine.RecurringRule{
		ID:             "rule-1",
		UserID:         "user-1",
		Kind:           engine.KindExpense,
		Amount:         engine.NewMoneyFromInt(1200),
		Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: 1},
		NextOccurrence: date(2024, time.March, 1),
		IsActive:       true,
	}))

	result, err := eng.RunScheduledGeneration(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)

	// Re-run is a no-op.
	result, err = eng.RunScheduledGeneration(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
}

// =============================================================================
// ALERT PASS
// =============================================================================

func TestEngine_RunAllAlertChecks_FiresBuiltinsAndRules(t *testing.T) {
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := newTestEngine(mem, now)
	ctx := context.Background()

	// Over the default 2000 limit.
	seedConfirmedExpense(t, mem, "mv-1", 2500, date(2024, time.June, 3))
	// One pending movement for the backlog check.
	require.NoError(t, mem.InsertMovement(ctx, engine.Movement{
		ID: "mv-2", UserID: checkUser, Kind: engine.KindExpense,
		Amount: engine.NewMoneyFromInt(50), Date: date(2024, time.June, 10),
		Status: engine.StatusPending,
	}))
	// A user rule that also fires.
	userRule := newRule(engine.SpendingExceeds, engine.OpGT, 1000)
	require.NoError(t, mem.SaveAlertRule(ctx, userRule))

	eng.RunAllAlertChecks(ctx, "user-1")

	keys := alertKeys(t, mem, "user-1")
	assert.Contains(t, keys, engine.KeySpendingLimit)
	assert.Contains(t, keys, engine.KeyRulePending)
	assert.Contains(t, keys, userRule.Key())
	assert.Len(t, keys, 3, "quiet checks raise nothing")
}

func TestEngine_RunAllAlertChecks_DedupSuppressesSecondPass(t *testing.T) {
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := newTestEngine(mem, now)
	ctx := context.Background()

	seedConfirmedExpense(t, mem, "mv-1", 2500, date(2024, time.June, 3))

	eng.RunAllAlertChecks(ctx, "user-1")
	eng.RunAllAlertChecks(ctx, "user-1")

	alerts, err := mem.Alerts(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "the still-true condition must not re-alert within its window")
}

func TestEngine_RunAllAlertChecks_RefiresAfterWindowElapses(t *testing.T) {
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := newTestEngine(mem, now)
	ctx := context.Background()

	seedConfirmedExpense(t, mem, "mv-1", 2500, date(2024, time.June, 3))
	eng.RunAllAlertChecks(ctx, "user-1")

	// Eight days later the 7-day spending window has elapsed. The movement is
	// now out of the June window, so seed the new month over the limit too.
	later := now.AddDate(0, 0, 8)
	seedConfirmedExpense(t, mem, "mv-2", 2500, date(2024, time.June, 20))
	eng.Now = func() time.Time { return later }
	eng.Dedup = &engine.StoreDeduplicator{Alerts: mem, Now: eng.Now}

	eng.RunAllAlertChecks(ctx, "user-1")

	alerts, err := mem.Alerts(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestEngine_OnceRule_MarkedTriggered(t *testing.T) {
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := newTestEngine(mem, now)
	ctx := context.Background()

	seedConfirmedExpense(t, mem, "mv-1", 2500, date(2024, time.June, 3))

	rule := newRule(engine.SpendingExceeds, engine.OpGT, 1000)
	rule.TriggerMode = engine.TriggerOnce
	require.NoError(t, mem.SaveAlertRule(ctx, rule))

	eng.RunAllAlertChecks(ctx, "user-1")

	rules, err := mem.ActiveAlertRules(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.NotNil(t, rules[0].LastTriggeredAt, "firing a once-mode rule stamps it")
	assert.Equal(t, now, *rules[0].LastTriggeredAt)
}

func TestEngine_QuietData_RaisesNothing(t *testing.T) {
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := newTestEngine(mem, now)
	ctx := context.Background()

	// Under the limit, nothing pending, no goals/investments/debts/rules.
	seedConfirmedExpense(t, mem, "mv-1", 100, date(2024, time.June, 3))

	eng.RunAllAlertChecks(ctx, "user-1")

	alerts, err := mem.Alerts(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngine_Options_CustomSpendingLimit(t *testing.T) {
	now := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	ctx := context.Background()

	eng := engine.New(mem, engine.Options{SpendingLimit: engine.NewMoneyFromInt(100)})
	eng.Now = func() time.Time { return now }
	eng.Dedup = &engine.StoreDeduplicator{Alerts: mem, Now: eng.Now}

	seedConfirmedExpense(t, mem, "mv-1", 150, date(2024, time.June, 3))

	eng.RunAllAlertChecks(ctx, "user-1")

	keys := alertKeys(t, mem, "user-1")
	assert.Contains(t, keys, engine.KeySpendingLimit)
}

func TestEngine_GenerationThenBacklogAlert(t *testing.T) {
	// Generation materializes a pending movement; the subsequent alert pass
	// reports it. This is the dashboard-load sequence.
	now := time.Date(2024, time.March, 5, 8, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	eng := newTestEngine(mem, now)
	ctx := context.Background()

	require.NoError(t, mem.SaveRecurringRule(ctx, engine.RecurringRule{
		ID:             "rule-1",
		UserID:         "user-1",
		Kind:           engine.KindExpense,
		Amount:         engine.NewMoneyFromInt(40),
		Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: 1},
		NextOccurrence: date(2024, time.March, 1),
		IsActive:       true,
	}))

	result, err := eng.RunScheduledGeneration(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)

	eng.RunAllAlertChecks(ctx, "user-1")

	keys := alertKeys(t, mem, "user-1")
	assert.Contains(t, keys, engine.KeyRulePending)
}
