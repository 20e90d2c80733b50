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

func newTestGenerator() (*engine.Generator, *store.Memory) {
	mem := store.NewMemory()
	gen := engine.NewGenerator(mem)

	// Deterministic ids for assertions.
	seq := 0
	gen.NewID = func() string {
		seq++
		return fmt.Sprintf("mv-%d", seq)
	}
	return gen, mem
}

func monthlyRule(id string, user string, dayOfMonth int, next engine.Date) engine.RecurringRule {
	return engine.RecurringRule{
		ID:             engine.RuleID(id),
		UserID:         engine.UserID(user),
		AccountID:      "acc-1",
		Kind:           engine.KindExpense,
		Amount:         engine.NewMoneyFromInt(1200),
		Recurrence:     engine.Recurrence{Frequency: engine.Monthly, DayOfMonth: dayOfMonth},
		NextOccurrence: next,
		IsActive:       true,
	}
}

// =============================================================================
// GENERATION SCENARIOS
// =============================================================================

func TestGenerate_DueRule_CreatesPendingAndAdvances(t *testing.T) {
	// GIVEN: A monthly rule on day 1, next occurrence 2024-03-01
	// WHEN: Generating on 2024-03-05
	// THEN: One pending movement dated 2024-03-01, schedule advanced to 2024-04-01

	gen, mem := newTestGenerator()
	ctx := context.Background()

	rule := monthlyRule("rule-1", "user-1", 1, date(2024, time.March, 1))
	require.NoError(t, mem.SaveRecurringRule(ctx, rule))

	result, err := gen.Generate(ctx, "user-1", date(2024, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)

	pending, err := mem.PendingMovements(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, date(2024, time.March, 1), pending[0].Date)
	assert.Equal(t, engine.StatusPending, pending[0].Status)
	assert.Equal(t, engine.RuleID("rule-1"), pending[0].RecurringRuleID)
	assert.Equal(t, engine.KindExpense, pending[0].Kind)
	assert.True(t, pending[0].Amount.Equal(engine.NewMoneyFromInt(1200)))

	advanced, err := mem.GetRecurringRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 1), advanced.NextOccurrence)
}

func TestGenerate_SecondPass_CreatesNothing(t *testing.T) {
	// GIVEN: A rule already processed on 2024-03-05
	// WHEN: Generating again on 2024-03-06
	// THEN: Zero additional movements

	gen, mem := newTestGenerator()
	ctx := context.Background()

	require.NoError(t, mem.SaveRecurringRule(ctx, monthlyRule("rule-1", "user-1", 1, date(2024, time.March, 1))))

	first, err := gen.Generate(ctx, "user-1", date(2024, time.March, 5))
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := gen.Generate(ctx, "user-1", date(2024, time.March, 6))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)

	pending, err := mem.PendingMovements(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestGenerate_Idempotent_SameDayDoubleRun(t *testing.T) {
	gen, mem := newTestGenerator()
	ctx := context.Background()

	require.NoError(t, mem.SaveRecurringRule(ctx, monthlyRule("rule-1", "user-1", 1, date(2024, time.March, 1))))

	today := date(2024, time.March, 5)
	first, err := gen.Generate(ctx, "user-1", today)
	require.NoError(t, err)
	second, err := gen.Generate(ctx, "user-1", today)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, second.Created)

	pending, err := mem.PendingMovements(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1, "double run must not duplicate movements")
}

func TestGenerate_ExistingMovement_StillAdvancesSchedule(t *testing.T) {
	// GIVEN: A movement already exists for (rule, date) - e.g. a concurrent
	//        pass won the insert race
	// WHEN: Generating
	// THEN: The insert is skipped but the schedule still advances

	gen, mem := newTestGenerator()
	ctx := context.Background()

	rule := monthlyRule("rule-1", "user-1", 1, date(2024, time.March, 1))
	require.NoError(t, mem.SaveRecurringRule(ctx, rule))
	require.NoError(t, mem.InsertMovement(ctx, engine.Movement{
		ID:              "pre-existing",
		UserID:          "user-1",
		Kind:            engine.KindExpense,
		Amount:          engine.NewMoneyFromInt(1200),
		Date:            date(2024, time.March, 1),
		Status:          engine.StatusPending,
		RecurringRuleID: "rule-1",
	}))

	result, err := gen.Generate(ctx, "user-1", date(2024, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Empty(t, result.Errors)

	advanced, err := mem.GetRecurringRule(ctx, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 1), advanced.NextOccurrence)
}

func TestGenerate_NotDueOrInactive_Skipped(t *testing.T) {
	gen, mem := newTestGenerator()
	ctx := context.Background()

	future := monthlyRule("rule-future", "user-1", 1, date(2024, time.April, 1))
	require.NoError(t, mem.SaveRecurringRule(ctx, future))

	inactive := monthlyRule("rule-off", "user-1", 1, date(2024, time.March, 1))
	inactive.IsActive = false
	require.NoError(t, mem.SaveRecurringRule(ctx, inactive))

	result, err := gen.Generate(ctx, "user-1", date(2024, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)

	// Neither rule moved.
	r1, _ := mem.GetRecurringRule(ctx, "rule-future")
	assert.Equal(t, date(2024, time.April, 1), r1.NextOccurrence)
	r2, _ := mem.GetRecurringRule(ctx, "rule-off")
	assert.Equal(t, date(2024, time.March, 1), r2.NextOccurrence)
}

func TestGenerate_MalformedRule_SkippedWithoutAbortingPass(t *testing.T) {
	// GIVEN: One malformed rule and one healthy rule, both due
	// WHEN: Generating
	// THEN: The healthy rule is processed, the malformed one is reported

	gen, mem := newTestGenerator()
	ctx := context.Background()

	broken := monthlyRule("rule-broken", "user-1", 0, date(2024, time.March, 1))
	require.NoError(t, mem.SaveRecurringRule(ctx, broken))
	require.NoError(t, mem.SaveRecurringRule(ctx, monthlyRule("rule-ok", "user-1", 1, date(2024, time.March, 1))))

	result, err := gen.Generate(ctx, "user-1", date(2024, time.March, 5))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, engine.RuleID("rule-broken"), result.Errors[0].RuleID)
	assert.ErrorIs(t, result.Errors[0].Err, engine.ErrInvalidRecurrence)

	// The malformed rule's schedule did not move; it will be retried.
	stuck, _ := mem.GetRecurringRule(ctx, "rule-broken")
	assert.Equal(t, date(2024, time.March, 1), stuck.NextOccurrence)
}

func TestGenerate_OwnersAreIsolated(t *testing.T) {
	gen, mem := newTestGenerator()
	ctx := context.Background()

	require.NoError(t, mem.SaveRecurringRule(ctx, monthlyRule("rule-a", "user-a", 1, date(2024, time.March, 1))))
	require.NoError(t, mem.SaveRecurringRule(ctx, monthlyRule("rule-b", "user-b", 1, date(2024, time.March, 1))))

	result, err := gen.Generate(ctx, "user-a", date(2024, time.March, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	otherPending, err := mem.PendingMovements(ctx, "user-b")
	require.NoError(t, err)
	assert.Empty(t, otherPending, "a pass must never touch another owner's data")
}
