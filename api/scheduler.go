/*
scheduler.go - Automated engine scheduler

PURPOSE:
  Periodically runs the two engine entry points (recurring generation
  and alert checks) for every known owner, and records each pass for
  audit and UI display.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Discovers owners from the store (rules, alert rules, movements)
  - Generation and alert checks are idempotent, so overlapping or
    repeated passes are safe
  - Records engine runs for audit and UI display

CONFIGURATION:
  - CheckInterval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewEngineScheduler(store, eng)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerEngineRuns endpoint (manual run)
  - engine/engine.go: RunScheduledGeneration, RunAllAlertChecks
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmdatahub/gestor-engine/engine"
	"github.com/jmdatahub/gestor-engine/store/sqlite"
)

// EngineScheduler runs the automation engine on a fixed interval.
type EngineScheduler struct {
	Store         *sqlite.Store
	Engine        *engine.Engine
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewEngineScheduler creates a new scheduler.
func NewEngineScheduler(store *sqlite.Store, eng *engine.Engine) *EngineScheduler {
	return &EngineScheduler{
		Store:         store,
		Engine:        eng,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (es *EngineScheduler) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if !es.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)

	go es.run()

	log.Printf("[Scheduler] Started with check interval: %v", es.CheckInterval)
}

// Stop stops the scheduler.
func (es *EngineScheduler) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		close(es.stop)
		es.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (es *EngineScheduler) run() {
	defer es.wg.Done()

	// Run immediately on start
	es.runAllOwners()

	for {
		select {
		case <-es.ticker.C:
			es.runAllOwners()
		case <-es.stop:
			return
		}
	}
}

func (es *EngineScheduler) runAllOwners() {
	ctx := context.Background()

	log.Printf("[Scheduler] Starting engine pass at %v", time.Now())

	owners, err := es.Store.Owners(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing owners: %v", err)
		return
	}

	completed := 0
	failed := 0

	for _, owner := range owners {
		if err := es.runOwner(ctx, owner); err != nil {
			log.Printf("[Scheduler] Error processing owner %s: %v", owner, err)
			failed++
		} else {
			completed++
		}
	}

	if completed > 0 || failed > 0 {
		log.Printf("[Scheduler] Completed: %d owners processed, %d failed", completed, failed)
	}
}

// runOwner executes one full engine pass (generation + alert checks) for a
// single owner, bracketed by a persisted run record.
func (es *EngineScheduler) runOwner(ctx context.Context, owner engine.UserID) error {
	startTime := time.Now()

	run := sqlite.EngineRun{
		ID:        uuid.NewString(),
		UserID:    owner,
		Status:    sqlite.RunPending,
		StartedAt: startTime,
		CreatedAt: startTime,
	}

	if err := es.Store.SaveEngineRun(ctx, run); err != nil {
		return err
	}

	result, err := es.Engine.RunScheduledGeneration(ctx, owner)
	if err != nil {
		run.Status = sqlite.RunFailed
		run.Error = err.Error()
		run.CompletedAt = time.Now()
		es.Store.SaveEngineRun(ctx, run)
		return err
	}
	run.CreatedCount = result.Created

	// Alert checks are fire-and-forget; individual failures are logged
	// inside the engine and do not fail the run.
	es.Engine.RunAllAlertChecks(ctx, owner)

	run.Status = sqlite.RunCompleted
	run.CompletedAt = time.Now()
	if err := es.Store.SaveEngineRun(ctx, run); err != nil {
		return err
	}

	log.Printf("[Scheduler] Processed owner %s: %d movements created", owner, run.CreatedCount)
	return nil
}

// RunNow triggers an immediate pass (for testing/admin).
func (es *EngineScheduler) RunNow() {
	es.runAllOwners()
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (es *EngineScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(es.CheckInterval)
}
