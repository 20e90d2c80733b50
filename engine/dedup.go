package engine

import (
	"context"
	"time"
)

// =============================================================================
// DEDUPLICATOR - Time-windowed guard against alert storms
// =============================================================================

// Deduplicator decides whether an alert of a given key may fire for an owner.
// Deduplication is type-level: a still-true condition does not re-alert just
// because the underlying number moved. A single interface so the storage race
// can later be hardened without touching evaluator code.
type Deduplicator interface {
	// ShouldFire returns true iff no alert with this key exists within the
	// trailing windowDays.
	ShouldFire(ctx context.Context, userID UserID, key AlertKey, windowDays int) (bool, error)
}

// StoreDeduplicator checks recent alerts through the AlertStore. Best-effort:
// the check-then-insert race is resolved by the store's (user, key, day)
// uniqueness, not here.
type StoreDeduplicator struct {
	Alerts AlertStore

	// Now is overridable for tests that simulate elapsed days.
	Now func() time.Time
}

func NewDeduplicator(alerts AlertStore) *StoreDeduplicator {
	return &StoreDeduplicator{Alerts: alerts, Now: time.Now}
}

func (d *StoreDeduplicator) ShouldFire(ctx context.Context, userID UserID, key AlertKey, windowDays int) (bool, error) {
	since := d.Now().AddDate(0, 0, -windowDays)
	exists, err := d.Alerts.HasRecentAlert(ctx, userID, key, since)
	if err != nil {
		return false, err
	}
	return !exists, nil
}
