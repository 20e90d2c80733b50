/*
engine.go - Engine facade: the two entry points callers invoke

PURPOSE:
  Wires the generator, the built-in checks, the user rule evaluator and the
  deduplicator into the two operations the application calls, typically once
  per dashboard or alerts-page load:

    RunScheduledGeneration(owner) -> {created, errors}
    RunAllAlertChecks(owner)      -> fire-and-forget

CONTROL FLOW:
  Generation runs first (it may materialize pending movements the backlog
  check reads), then the built-in checks, then the active user rules. Each
  alert producer is dedup-gated BEFORE it evaluates.

FAILURE SEMANTICS:
  Nothing here is fatal to the hosting application. A failed check is logged
  and skipped; a failed pass means alerts/movements are stale until the next
  invocation. Transient storage errors are never retried in a loop - the next
  caller trigger is the retry.

SEE ALSO:
  - generator.go, checks.go, rules_eval.go, dedup.go
  - api/handlers.go: HTTP surface over these entry points
*/
package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Store     Store
	Generator *Generator
	Checks    []ConditionCheck
	RuleEval  *RuleEvaluator
	Dedup     Deduplicator

	// RuleWindowDays gates user-rule alerts; built-in checks carry their own.
	RuleWindowDays int

	// Now is overridable for tests. Defaults to time.Now.
	Now func() time.Time

	// NewID mints alert ids. Defaults to uuid.NewString.
	NewID func() string
}

// Options tune engine behavior; zero values fall back to defaults.
type Options struct {
	SpendingLimit  Money // monthly ceiling for the built-in spending check
	RuleWindowDays int
}

// DefaultSpendingLimit is the built-in monthly expense ceiling used when no
// limit is configured.
var DefaultSpendingLimit = NewMoneyFromInt(2000)

func New(store Store, opts Options) *Engine {
	limit := opts.SpendingLimit
	if limit.Value.IsZero() {
		limit = DefaultSpendingLimit
	}
	window := opts.RuleWindowDays
	if window <= 0 {
		window = 1
	}
	return &Engine{
		Store:          store,
		Generator:      NewGenerator(store),
		Checks:         BuiltinChecks(store, limit),
		RuleEval:       NewRuleEvaluator(store),
		Dedup:          NewDeduplicator(store),
		RuleWindowDays: window,
		Now:            time.Now,
		NewID:          uuid.NewString,
	}
}

// RunScheduledGeneration runs one idempotent generation pass for the owner.
func (e *Engine) RunScheduledGeneration(ctx context.Context, userID UserID) (GenerationResult, error) {
	today := DateOf(e.now())
	result, err := e.Generator.Generate(ctx, userID, today)
	if err != nil {
		return result, err
	}
	for _, ruleErr := range result.Errors {
		log.Printf("[Engine] Generation error for %s: %v", userID, &ruleErr)
	}
	return result, nil
}

// RunAllAlertChecks evaluates the built-in checks and the owner's active
// alert rules. Fire-and-forget: failures are logged and skipped, alerts are
// retrieved afterward via a plain read.
func (e *Engine) RunAllAlertChecks(ctx context.Context, userID UserID) {
	today := DateOf(e.now())

	for _, check := range e.Checks {
		if err := e.runCheck(ctx, userID, today, check); err != nil {
			log.Printf("[Engine] Check %s failed for %s: %v", check.Key(), userID, err)
		}
	}

	rules, err := e.Store.ActiveAlertRules(ctx, userID)
	if err != nil {
		log.Printf("[Engine] Loading alert rules failed for %s: %v", userID, err)
		return
	}
	for _, rule := range rules {
		if err := e.runRule(ctx, userID, today, rule); err != nil {
			log.Printf("[Engine] Rule %s failed for %s: %v", rule.ID, userID, err)
		}
	}
}

// runCheck gates, evaluates and persists one built-in check.
func (e *Engine) runCheck(ctx context.Context, userID UserID, today Date, check ConditionCheck) error {
	fire, err := e.Dedup.ShouldFire(ctx, userID, check.Key(), check.WindowDays())
	if err != nil || !fire {
		return err
	}

	draft, err := check.Evaluate(ctx, userID, today)
	if err != nil || draft == nil {
		return err
	}

	return e.insertDraft(ctx, userID, *draft)
}

// runRule gates, evaluates and persists one user alert rule.
func (e *Engine) runRule(ctx context.Context, userID UserID, today Date, rule AlertRule) error {
	fire, err := e.Dedup.ShouldFire(ctx, userID, rule.Key(), e.RuleWindowDays)
	if err != nil || !fire {
		return err
	}

	outcome, err := e.RuleEval.Evaluate(ctx, rule, today)
	if err != nil || !outcome.Fired {
		return err
	}

	if err := e.insertDraft(ctx, userID, *outcome.Draft); err != nil {
		return err
	}

	if rule.TriggerMode == TriggerOnce {
		if err := e.Store.MarkRuleTriggered(ctx, rule.ID, e.now()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) insertDraft(ctx context.Context, userID UserID, draft AlertDraft) error {
	err := e.Store.InsertAlert(ctx, Alert{
		ID:        AlertID(e.newID()),
		UserID:    userID,
		Key:       draft.Key,
		Title:     draft.Title,
		Message:   draft.Message,
		Severity:  draft.Severity,
		Metadata:  draft.Metadata,
		CreatedAt: e.now(),
	})
	if IsConflict(err) {
		// Lost the check-then-insert race to a concurrent pass. Fine.
		return nil
	}
	return err
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}
