package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmdatahub/gestor-engine/engine"
	"github.com/jmdatahub/gestor-engine/engine/store"
)

func seedAlert(t *testing.T, mem *store.Memory, id string, key engine.AlertKey, createdAt time.Time) {
	t.Helper()
	require.NoError(t, mem.InsertAlert(context.Background(), engine.Alert{
		ID:        engine.AlertID(id),
		UserID:    "user-1",
		Key:       key,
		Title:     "t",
		Message:   "m",
		Severity:  engine.SeverityInfo,
		CreatedAt: createdAt,
	}))
}

func TestDeduplicator_WindowSuppression(t *testing.T) {
	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

	t.Run("alert two days ago suppresses within a seven day window", func(t *testing.T) {
		mem := store.NewMemory()
		seedAlert(t, mem, "a-1", engine.KeySpendingLimit, now.AddDate(0, 0, -2))

		dedup := engine.NewDeduplicator(mem)
		dedup.Now = func() time.Time { return now }

		fire, err := dedup.ShouldFire(context.Background(), "user-1", engine.KeySpendingLimit, 7)
		require.NoError(t, err)
		assert.False(t, fire)
	})

	t.Run("alert eight days ago is outside the window", func(t *testing.T) {
		mem := store.NewMemory()
		seedAlert(t, mem, "a-1", engine.KeySpendingLimit, now.AddDate(0, 0, -8))

		dedup := engine.NewDeduplicator(mem)
		dedup.Now = func() time.Time { return now }

		fire, err := dedup.ShouldFire(context.Background(), "user-1", engine.KeySpendingLimit, 7)
		require.NoError(t, err)
		assert.True(t, fire)
	})

	t.Run("dedup is per key, other types do not suppress", func(t *testing.T) {
		mem := store.NewMemory()
		seedAlert(t, mem, "a-1", engine.KeyDebtDue, now.AddDate(0, 0, -1))

		dedup := engine.NewDeduplicator(mem)
		dedup.Now = func() time.Time { return now }

		fire, err := dedup.ShouldFire(context.Background(), "user-1", engine.KeySpendingLimit, 7)
		require.NoError(t, err)
		assert.True(t, fire)
	})

	t.Run("no prior alerts always fires", func(t *testing.T) {
		mem := store.NewMemory()

		dedup := engine.NewDeduplicator(mem)
		dedup.Now = func() time.Time { return now }

		fire, err := dedup.ShouldFire(context.Background(), "user-1", engine.KeySpendingLimit, 7)
		require.NoError(t, err)
		assert.True(t, fire)
	})
}

func TestInsertAlert_SameKeySameDay_Conflicts(t *testing.T) {
	// The check-then-insert race is resolved by the store's (user, key, day)
	// uniqueness. Two inserts for the same day must not both land.
	mem := store.NewMemory()
	now := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)

	seedAlert(t, mem, "a-1", engine.KeySpendingLimit, now)
	err := mem.InsertAlert(context.Background(), engine.Alert{
		ID:        "a-2",
		UserID:    "user-1",
		Key:       engine.KeySpendingLimit,
		CreatedAt: now.Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, engine.ErrDuplicateAlert)
	assert.True(t, engine.IsConflict(err))
}
