/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements engine.Store plus the management surface the API exposes
  (rule CRUD, alert reads, subscriptions, summaries). In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  engine.RuleStore:      Recurring rule reads and schedule advancement
  engine.MovementStore:  Ledger entries and the pending lifecycle
  engine.SnapshotStore:  Aggregates read by the condition evaluators
  engine.AlertStore:     Alert persistence and dedup lookups
  engine.AlertRuleStore: User-authored alert rules

KEY TABLES:
  movements:       The ledger. Pending rows come from the generator.
  recurring_rules: Templates the generator materializes movements from.
  alerts:          Engine-raised notifications.
  alert_rules:     User-authored alert conditions.
  engine_runs:     Scheduler audit trail.

UNIQUENESS (the correctness mechanism):
  - idx_unique_generation ON movements(recurring_rule_id, date): two
    concurrent generation passes cannot both materialize the same
    occurrence. Mapped to engine.ErrDuplicateGeneration.
  - idx_unique_alert_day ON alerts(user_id, alert_key, created_day): two
    concurrent alert passes cannot both insert the same alert type on the
    same day. Mapped to engine.ErrDuplicateAlert.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/gestor.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(store, engine.Options{})

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/jmdatahub/gestor-engine/engine"
)

const dateLayout = "2006-01-02"

// Store implements engine.Store and the management surface using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts and categories (scope entities for rules and summaries)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_categories_user ON categories(user_id);

	-- Recurring rules (generation templates)
	CREATE TABLE IF NOT EXISTS recurring_rules (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT,
		account_id TEXT,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		category TEXT,
		description TEXT,
		frequency TEXT NOT NULL,
		day_of_week INTEGER NOT NULL DEFAULT 0,
		day_of_month INTEGER NOT NULL DEFAULT 0,
		next_occurrence TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rules_user_due
		ON recurring_rules(user_id, is_active, next_occurrence);

	-- Movements (the ledger; pending rows come from the generator)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT,
		account_id TEXT,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		category TEXT,
		description TEXT,
		status TEXT NOT NULL,
		recurring_rule_id TEXT,
		is_subscription BOOLEAN NOT NULL DEFAULT FALSE,
		subscription_end_date TEXT,
		auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
		provider TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one movement per (rule, occurrence date). Two concurrent
	-- generation passes may both see "nothing exists" but only one insert
	-- wins; the loser gets ErrDuplicateGeneration and moves on.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_generation
		ON movements(recurring_rule_id, date)
		WHERE recurring_rule_id IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_movements_user_status
		ON movements(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_movements_user_date
		ON movements(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_movements_subscriptions
		ON movements(user_id, subscription_end_date)
		WHERE is_subscription = TRUE;

	-- Alerts
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		alert_key TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		severity TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		metadata_json TEXT,
		created_at TEXT NOT NULL,
		created_day TEXT NOT NULL
	);

	-- CRITICAL: at most one alert per (user, key, day). Resolves the
	-- deduplicator's check-then-insert race at the storage layer.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_alert_day
		ON alerts(user_id, alert_key, created_day);

	CREATE INDEX IF NOT EXISTS idx_alerts_user_created
		ON alerts(user_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_alerts_user_key
		ON alerts(user_id, alert_key, created_at DESC);

	-- User-authored alert rules
	CREATE TABLE IF NOT EXISTS alert_rules (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		operator TEXT NOT NULL,
		threshold TEXT NOT NULL,
		category_id TEXT,
		account_id TEXT,
		severity TEXT NOT NULL,
		trigger_mode TEXT NOT NULL,
		period TEXT NOT NULL,
		description TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_triggered_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alert_rules_user_active
		ON alert_rules(user_id, is_active);

	-- Snapshot entities read by the condition evaluators
	CREATE TABLE IF NOT EXISTS savings_goals (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		target TEXT NOT NULL,
		current TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_goals_user ON savings_goals(user_id);

	CREATE TABLE IF NOT EXISTS investments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		buy_price TEXT NOT NULL,
		current_price TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_investments_user ON investments(user_id);

	CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT,
		closed BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_debts_user_due ON debts(user_id, due_date);

	-- Engine runs (scheduler audit trail)
	CREATE TABLE IF NOT EXISTS engine_runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_engine_runs_user
		ON engine_runs(user_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE STORE (engine.RuleStore interface)
// =============================================================================

// SaveRecurringRule inserts or updates a rule.
func (s *Store) SaveRecurringRule(ctx context.Context, r engine.RecurringRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO recurring_rules
		(id, user_id, workspace_id, account_id, kind, amount, category, description,
		 frequency, day_of_week, day_of_month, next_occurrence, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			kind = excluded.kind,
			amount = excluded.amount,
			category = excluded.category,
			description = excluded.description,
			frequency = excluded.frequency,
			day_of_week = excluded.day_of_week,
			day_of_month = excluded.day_of_month,
			next_occurrence = excluded.next_occurrence,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		string(r.ID), string(r.UserID), nullString(string(r.WorkspaceID)),
		nullString(r.AccountID), string(r.Kind), r.Amount.String(),
		nullString(r.Category), nullString(r.Description),
		string(r.Recurrence.Frequency), r.Recurrence.DayOfWeek, r.Recurrence.DayOfMonth,
		r.NextOccurrence.String(), r.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetRecurringRule retrieves a rule by id.
func (s *Store) GetRecurringRule(ctx context.Context, id engine.RuleID) (engine.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectRuleQuery+" WHERE id = ?", string(id))
	r, err := scanRule(row)
	if err == sql.ErrNoRows {
		return engine.RecurringRule{}, engine.ErrRuleNotFound
	}
	return r, err
}

// ListRecurringRules returns the owner's rules ordered by next occurrence.
func (s *Store) ListRecurringRules(ctx context.Context, userID engine.UserID) ([]engine.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRules(ctx,
		selectRuleQuery+" WHERE user_id = ? ORDER BY next_occurrence ASC",
		string(userID))
}

// DueRecurringRules returns active rules with next_occurrence <= onOrBefore.
func (s *Store) DueRecurringRules(ctx context.Context, userID engine.UserID, onOrBefore engine.Date) ([]engine.RecurringRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRules(ctx,
		selectRuleQuery+` WHERE user_id = ? AND is_active = TRUE AND next_occurrence <= ?
		 ORDER BY next_occurrence ASC`,
		string(userID), onOrBefore.String())
}

// AdvanceRule persists a rule's new next_occurrence.
func (s *Store) AdvanceRule(ctx context.Context, ruleID engine.RuleID, next engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE recurring_rules SET next_occurrence = ? WHERE id = ?",
		next.String(), string(ruleID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrRuleNotFound
	}
	return nil
}

// SetRuleActive toggles a rule on or off.
func (s *Store) SetRuleActive(ctx context.Context, ruleID engine.RuleID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE recurring_rules SET is_active = ? WHERE id = ?",
		active, string(ruleID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrRuleNotFound
	}
	return nil
}

const selectRuleQuery = `
	SELECT id, user_id, workspace_id, account_id, kind, amount, category, description,
	       frequency, day_of_week, day_of_month, next_occurrence, is_active, created_at
	FROM recurring_rules`

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]engine.RecurringRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []engine.RecurringRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (engine.RecurringRule, error) {
	var (
		r                       engine.RecurringRule
		workspace, account      sql.NullString
		category, description   sql.NullString
		amount, next, createdAt string
		frequency               string
	)

	err := row.Scan(&r.ID, &r.UserID, &workspace, &account, &r.Kind, &amount,
		&category, &description, &frequency,
		&r.Recurrence.DayOfWeek, &r.Recurrence.DayOfMonth,
		&next, &r.IsActive, &createdAt)
	if err != nil {
		return r, err
	}

	r.WorkspaceID = engine.WorkspaceID(workspace.String)
	r.AccountID = account.String
	r.Category = category.String
	r.Description = description.String
	r.Recurrence.Frequency = engine.Frequency(frequency)
	r.Amount = parseMoney(amount)
	r.NextOccurrence, _ = engine.ParseDate(next)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		r.CreatedAt = engine.DateOf(t)
	}
	return r, nil
}

// =============================================================================
// MOVEMENT STORE (engine.MovementStore interface)
// =============================================================================

// InsertMovement persists a movement. Returns engine.ErrDuplicateGeneration
// when a movement for the same (recurring_rule_id, date) already exists.
func (s *Store) InsertMovement(ctx context.Context, m engine.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO movements
		(id, user_id, workspace_id, account_id, kind, amount, date, category,
		 description, status, recurring_rule_id, is_subscription,
		 subscription_end_date, auto_renew, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var subEnd sql.NullString
	if m.SubscriptionEndDate != nil {
		subEnd = sql.NullString{String: m.SubscriptionEndDate.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		string(m.ID), string(m.UserID), nullString(string(m.WorkspaceID)),
		nullString(m.AccountID), string(m.Kind), m.Amount.String(),
		m.Date.String(), nullString(m.Category), nullString(m.Description),
		string(m.Status), nullString(string(m.RecurringRuleID)),
		m.IsSubscription, subEnd, m.AutoRenew, nullString(m.Provider),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateGeneration
		}
		return fmt.Errorf("failed to insert movement: %w", err)
	}
	return nil
}

// GetMovement retrieves a movement by id.
func (s *Store) GetMovement(ctx context.Context, id engine.MovementID) (engine.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectMovementQuery+" WHERE id = ?", string(id))
	m, err := scanMovement(row)
	if err == sql.ErrNoRows {
		return engine.Movement{}, engine.ErrMovementNotFound
	}
	return m, err
}

// PendingMovements returns pending movements ordered by date.
func (s *Store) PendingMovements(ctx context.Context, userID engine.UserID) ([]engine.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryMovements(ctx,
		selectMovementQuery+" WHERE user_id = ? AND status = ? ORDER BY date ASC, created_at ASC",
		string(userID), string(engine.StatusPending))
}

// PendingCount returns the number of pending movements.
func (s *Store) PendingCount(ctx context.Context, userID engine.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM movements WHERE user_id = ? AND status = ?",
		string(userID), string(engine.StatusPending)).Scan(&count)
	return count, err
}

// ConfirmMovement flips a pending movement to confirmed. Terminal.
func (s *Store) ConfirmMovement(ctx context.Context, id engine.MovementID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE movements SET status = ? WHERE id = ? AND status = ?",
		string(engine.StatusConfirmed), string(id), string(engine.StatusPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.movementLifecycleError(ctx, id)
	}
	return nil
}

// DiscardMovement deletes a pending movement entirely. Terminal. The freed
// (rule, date) slot is not regenerated: the rule's schedule has already
// advanced past it.
func (s *Store) DiscardMovement(ctx context.Context, id engine.MovementID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM movements WHERE id = ? AND status = ?",
		string(id), string(engine.StatusPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.movementLifecycleError(ctx, id)
	}
	return nil
}

// movementLifecycleError distinguishes "gone" from "not pending" after a
// guarded update matched zero rows.
func (s *Store) movementLifecycleError(ctx context.Context, id engine.MovementID) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		"SELECT status FROM movements WHERE id = ?", string(id)).Scan(&status)
	if err == sql.ErrNoRows {
		return engine.ErrMovementNotFound
	}
	if err != nil {
		return err
	}
	return engine.ErrNotPending
}

const selectMovementQuery = `
	SELECT id, user_id, workspace_id, account_id, kind, amount, date, category,
	       description, status, recurring_rule_id, is_subscription,
	       subscription_end_date, auto_renew, provider, created_at
	FROM movements`

func (s *Store) queryMovements(ctx context.Context, query string, args ...any) ([]engine.Movement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []engine.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanMovement(row rowScanner) (engine.Movement, error) {
	var (
		m                     engine.Movement
		workspace, account    sql.NullString
		category, description sql.NullString
		ruleID, provider      sql.NullString
		subEnd                sql.NullString
		amount, dateStr       string
		createdAt             string
	)

	err := row.Scan(&m.ID, &m.UserID, &workspace, &account, &m.Kind, &amount,
		&dateStr, &category, &description, &m.Status, &ruleID,
		&m.IsSubscription, &subEnd, &m.AutoRenew, &provider, &createdAt)
	if err != nil {
		return m, err
	}

	m.WorkspaceID = engine.WorkspaceID(workspace.String)
	m.AccountID = account.String
	m.Category = category.String
	m.Description = description.String
	m.RecurringRuleID = engine.RuleID(ruleID.String)
	m.Provider = provider.String
	m.Amount = parseMoney(amount)
	m.Date, _ = engine.ParseDate(dateStr)
	if subEnd.Valid {
		if d, err := engine.ParseDate(subEnd.String); err == nil {
			m.SubscriptionEndDate = &d
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		m.CreatedAt = engine.DateOf(t)
	}
	return m, nil
}

// =============================================================================
// SNAPSHOT STORE (engine.SnapshotStore interface)
// =============================================================================

// SpendingTotal sums confirmed expenses in [from, to]. Empty categoryID
// means all categories.
func (s *Store) SpendingTotal(ctx context.Context, userID engine.UserID, from, to engine.Date, categoryID string) (engine.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT amount FROM movements
		WHERE user_id = ? AND status = ? AND kind = ? AND date >= ? AND date <= ?`
	args := []any{string(userID), string(engine.StatusConfirmed),
		string(engine.KindExpense), from.String(), to.String()}
	if categoryID != "" {
		query += " AND category = ?"
		args = append(args, categoryID)
	}

	return s.sumAmounts(ctx, query, args...)
}

// IncomeTotal sums confirmed income in [from, to].
func (s *Store) IncomeTotal(ctx context.Context, userID engine.UserID, from, to engine.Date) (engine.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumAmounts(ctx, `
		SELECT amount FROM movements
		WHERE user_id = ? AND status = ? AND kind = ? AND date >= ? AND date <= ?`,
		string(userID), string(engine.StatusConfirmed),
		string(engine.KindIncome), from.String(), to.String())
}

// AccountBalance returns income minus expenses over all confirmed movements
// for one account, or all accounts when accountID is empty.
func (s *Store) AccountBalance(ctx context.Context, userID engine.UserID, accountID string) (engine.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT kind, amount FROM movements WHERE user_id = ? AND status = ?"
	args := []any{string(userID), string(engine.StatusConfirmed)}
	if accountID != "" {
		query += " AND account_id = ?"
		args = append(args, accountID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return engine.ZeroMoney(), err
	}
	defer rows.Close()

	balance := engine.ZeroMoney()
	for rows.Next() {
		var kind, amount string
		if err := rows.Scan(&kind, &amount); err != nil {
			return engine.ZeroMoney(), err
		}
		switch engine.MovementKind(kind) {
		case engine.KindIncome:
			balance = balance.Add(parseMoney(amount))
		case engine.KindExpense:
			balance = balance.Sub(parseMoney(amount))
		}
	}
	return balance, rows.Err()
}

// sumAmounts folds decimal string amounts in Go. SQLite's SUM would coerce
// the TEXT column through floats and lose precision.
func (s *Store) sumAmounts(ctx context.Context, query string, args ...any) (engine.Money, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return engine.ZeroMoney(), err
	}
	defer rows.Close()

	total := engine.ZeroMoney()
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return engine.ZeroMoney(), err
		}
		total = total.Add(parseMoney(amount))
	}
	return total, rows.Err()
}

// SavingsGoals returns the owner's goals.
func (s *Store) SavingsGoals(ctx context.Context, userID engine.UserID) ([]engine.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, target, current, completed FROM savings_goals WHERE user_id = ? ORDER BY name",
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []engine.SavingsGoal
	for rows.Next() {
		var g engine.SavingsGoal
		var target, current string
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &target, &current, &g.Completed); err != nil {
			return nil, err
		}
		g.Target = parseMoney(target)
		g.Current = parseMoney(current)
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// SaveSavingsGoal inserts or updates a goal.
func (s *Store) SaveSavingsGoal(ctx context.Context, g engine.SavingsGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO savings_goals (id, user_id, name, target, current, completed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, target = excluded.target,
			current = excluded.current, completed = excluded.completed`,
		g.ID, string(g.UserID), g.Name, g.Target.String(), g.Current.String(), g.Completed)
	return err
}

// Investments returns the owner's investments.
func (s *Store) Investments(ctx context.Context, userID engine.UserID) ([]engine.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, buy_price, current_price FROM investments WHERE user_id = ? ORDER BY name",
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var investments []engine.Investment
	for rows.Next() {
		var inv engine.Investment
		var buy, current string
		if err := rows.Scan(&inv.ID, &inv.UserID, &inv.Name, &buy, &current); err != nil {
			return nil, err
		}
		inv.BuyPrice = parseMoney(buy)
		inv.CurrentPrice = parseMoney(current)
		investments = append(investments, inv)
	}
	return investments, rows.Err()
}

// SaveInvestment inserts or updates an investment.
func (s *Store) SaveInvestment(ctx context.Context, inv engine.Investment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (id, user_id, name, buy_price, current_price)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, buy_price = excluded.buy_price,
			current_price = excluded.current_price`,
		inv.ID, string(inv.UserID), inv.Name, inv.BuyPrice.String(), inv.CurrentPrice.String())
	return err
}

// OpenDebts returns non-closed debts with a due date, nearest first.
func (s *Store) OpenDebts(ctx context.Context, userID engine.UserID) ([]engine.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, counterparty, amount, due_date, closed FROM debts
		WHERE user_id = ? AND closed = FALSE AND due_date IS NOT NULL
		ORDER BY due_date ASC`,
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var debts []engine.Debt
	for rows.Next() {
		var d engine.Debt
		var amount string
		var due sql.NullString
		if err := rows.Scan(&d.ID, &d.UserID, &d.Counterparty, &amount, &due, &d.Closed); err != nil {
			return nil, err
		}
		d.Amount = parseMoney(amount)
		if due.Valid {
			if date, err := engine.ParseDate(due.String); err == nil {
				d.DueDate = &date
			}
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

// SaveDebt inserts or updates a debt.
func (s *Store) SaveDebt(ctx context.Context, d engine.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due sql.NullString
	if d.DueDate != nil {
		due = sql.NullString{String: d.DueDate.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO debts (id, user_id, counterparty, amount, due_date, closed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			counterparty = excluded.counterparty, amount = excluded.amount,
			due_date = excluded.due_date, closed = excluded.closed`,
		d.ID, string(d.UserID), d.Counterparty, d.Amount.String(), due, d.Closed)
	return err
}

// CategoryName resolves a category label, "" when missing.
func (s *Store) CategoryName(ctx context.Context, userID engine.UserID, categoryID string) (string, error) {
	return s.ownedName(ctx, "categories", userID, categoryID)
}

// AccountName resolves an account label, "" when missing.
func (s *Store) AccountName(ctx context.Context, userID engine.UserID, accountID string) (string, error) {
	return s.ownedName(ctx, "accounts", userID, accountID)
}

func (s *Store) ownedName(ctx context.Context, table string, userID engine.UserID, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM "+table+" WHERE id = ? AND user_id = ?",
		id, string(userID)).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return name, err
}

// SaveAccount inserts or updates an account.
func (s *Store) SaveAccount(ctx context.Context, id string, userID engine.UserID, name string) error {
	return s.saveOwnedName(ctx, "accounts", id, userID, name)
}

// SaveCategory inserts or updates a category.
func (s *Store) SaveCategory(ctx context.Context, id string, userID engine.UserID, name string) error {
	return s.saveOwnedName(ctx, "categories", id, userID, name)
}

func (s *Store) saveOwnedName(ctx context.Context, table, id string, userID engine.UserID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO "+table+` (id, user_id, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, string(userID), name, time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// ALERT STORE (engine.AlertStore interface)
// =============================================================================

// InsertAlert persists an alert. Returns engine.ErrDuplicateAlert when one
// with the same (user, key, day) already exists.
func (s *Store) InsertAlert(ctx context.Context, a engine.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadataJSON, _ := json.Marshal(a.Metadata)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts
		(id, user_id, alert_key, title, message, severity, is_read, metadata_json, created_at, created_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(a.ID), string(a.UserID), string(a.Key), a.Title, a.Message,
		string(a.Severity), a.IsRead, string(metadataJSON),
		a.CreatedAt.UTC().Format(time.RFC3339),
		a.CreatedAt.UTC().Format(dateLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateAlert
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// HasRecentAlert reports whether any alert with the key was created at or
// after since.
func (s *Store) HasRecentAlert(ctx context.Context, userID engine.UserID, key engine.AlertKey, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alerts WHERE user_id = ? AND alert_key = ? AND created_at >= ?",
		string(userID), string(key), since.UTC().Format(time.RFC3339)).Scan(&count)
	return count > 0, err
}

// Alerts returns the owner's alerts newest-first.
func (s *Store) Alerts(ctx context.Context, userID engine.UserID) ([]engine.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, alert_key, title, message, severity, is_read, metadata_json, created_at
		FROM alerts WHERE user_id = ? ORDER BY created_at DESC`,
		string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []engine.Alert
	for rows.Next() {
		var a engine.Alert
		var metadataJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Key, &a.Title, &a.Message,
			&a.Severity, &a.IsRead, &metadataJSON, &createdAt); err != nil {
			return nil, err
		}
		if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
			json.Unmarshal([]byte(metadataJSON.String), &a.Metadata)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UnreadAlertCount returns the number of unread alerts.
func (s *Store) UnreadAlertCount(ctx context.Context, userID engine.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alerts WHERE user_id = ? AND is_read = FALSE",
		string(userID)).Scan(&count)
	return count, err
}

// MarkAlertRead flips one alert to read.
func (s *Store) MarkAlertRead(ctx context.Context, id engine.AlertID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET is_read = TRUE WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrAlertNotFound
	}
	return nil
}

// MarkAllAlertsRead flips all of the owner's alerts to read.
func (s *Store) MarkAllAlertsRead(ctx context.Context, userID engine.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE alerts SET is_read = TRUE WHERE user_id = ?", string(userID))
	return err
}

// DeleteAlert removes an alert.
func (s *Store) DeleteAlert(ctx context.Context, id engine.AlertID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM alerts WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrAlertNotFound
	}
	return nil
}

// =============================================================================
// ALERT RULE STORE (engine.AlertRuleStore interface)
// =============================================================================

// SaveAlertRule inserts or updates a rule definition.
func (s *Store) SaveAlertRule(ctx context.Context, r engine.AlertRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var triggered sql.NullString
	if r.LastTriggeredAt != nil {
		triggered = sql.NullString{String: r.LastTriggeredAt.UTC().Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_rules
		(id, user_id, name, type, operator, threshold, category_id, account_id,
		 severity, trigger_mode, period, description, is_active, last_triggered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			operator = excluded.operator,
			threshold = excluded.threshold,
			category_id = excluded.category_id,
			account_id = excluded.account_id,
			severity = excluded.severity,
			trigger_mode = excluded.trigger_mode,
			period = excluded.period,
			description = excluded.description,
			is_active = excluded.is_active,
			last_triggered_at = excluded.last_triggered_at`,
		string(r.ID), string(r.UserID), r.Name, string(r.Type),
		string(r.Condition.Operator), r.Condition.Threshold.String(),
		nullString(r.Condition.CategoryID), nullString(r.Condition.AccountID),
		string(r.Severity), string(r.TriggerMode), string(r.Period),
		nullString(r.Description), r.IsActive, triggered,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetAlertRule retrieves a rule definition by id.
func (s *Store) GetAlertRule(ctx context.Context, id engine.AlertRuleID) (engine.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectAlertRuleQuery+" WHERE id = ?", string(id))
	r, err := scanAlertRule(row)
	if err == sql.ErrNoRows {
		return engine.AlertRule{}, engine.ErrAlertRuleNotFound
	}
	return r, err
}

// ListAlertRules returns all of the owner's rule definitions.
func (s *Store) ListAlertRules(ctx context.Context, userID engine.UserID) ([]engine.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAlertRules(ctx,
		selectAlertRuleQuery+" WHERE user_id = ? ORDER BY created_at ASC",
		string(userID))
}

// ActiveAlertRules returns the owner's active rules.
func (s *Store) ActiveAlertRules(ctx context.Context, userID engine.UserID) ([]engine.AlertRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAlertRules(ctx,
		selectAlertRuleQuery+" WHERE user_id = ? AND is_active = TRUE ORDER BY created_at ASC",
		string(userID))
}

// MarkRuleTriggered stamps last_triggered_at (trigger mode "once").
func (s *Store) MarkRuleTriggered(ctx context.Context, ruleID engine.AlertRuleID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE alert_rules SET last_triggered_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), string(ruleID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrAlertRuleNotFound
	}
	return nil
}

// SetAlertRuleActive toggles a rule definition on or off.
func (s *Store) SetAlertRuleActive(ctx context.Context, id engine.AlertRuleID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE alert_rules SET is_active = ? WHERE id = ?", active, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrAlertRuleNotFound
	}
	return nil
}

// DeleteAlertRule removes a rule definition.
func (s *Store) DeleteAlertRule(ctx context.Context, id engine.AlertRuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM alert_rules WHERE id = ?", string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrAlertRuleNotFound
	}
	return nil
}

const selectAlertRuleQuery = `
	SELECT id, user_id, name, type, operator, threshold, category_id, account_id,
	       severity, trigger_mode, period, description, is_active, last_triggered_at, created_at
	FROM alert_rules`

func (s *Store) queryAlertRules(ctx context.Context, query string, args ...any) ([]engine.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []engine.AlertRule
	for rows.Next() {
		r, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func scanAlertRule(row rowScanner) (engine.AlertRule, error) {
	var (
		r                    engine.AlertRule
		threshold, createdAt string
		category, account    sql.NullString
		description          sql.NullString
		triggered            sql.NullString
	)

	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Type,
		&r.Condition.Operator, &threshold, &category, &account,
		&r.Severity, &r.TriggerMode, &r.Period, &description,
		&r.IsActive, &triggered, &createdAt)
	if err != nil {
		return r, err
	}

	r.Condition.Threshold, _ = decimal.NewFromString(threshold)
	r.Condition.CategoryID = category.String
	r.Condition.AccountID = account.String
	r.Description = description.String
	if triggered.Valid {
		if t, err := time.Parse(time.RFC3339, triggered.String); err == nil {
			r.LastTriggeredAt = &t
		}
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return r, nil
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// ExpiringSubscriptions returns subscription movements whose end date falls
// within the next days, soonest first.
func (s *Store) ExpiringSubscriptions(ctx context.Context, userID engine.UserID, today engine.Date, days int) ([]engine.ExpiringSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	horizon := today.AddDays(days)
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.description, m.provider, m.amount, m.subscription_end_date, m.auto_renew,
		       COALESCE(c.name, '')
		FROM movements m
		LEFT JOIN categories c ON c.id = m.category AND c.user_id = m.user_id
		WHERE m.user_id = ? AND m.is_subscription = TRUE
		  AND m.subscription_end_date IS NOT NULL
		  AND m.subscription_end_date >= ? AND m.subscription_end_date <= ?
		ORDER BY m.subscription_end_date ASC`,
		string(userID), today.String(), horizon.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []engine.ExpiringSubscription
	for rows.Next() {
		var (
			sub                   engine.ExpiringSubscription
			description, provider sql.NullString
			amount, endDate       string
		)
		if err := rows.Scan(&sub.MovementID, &description, &provider,
			&amount, &endDate, &sub.AutoRenew, &sub.CategoryName); err != nil {
			return nil, err
		}
		sub.Description = description.String
		sub.Provider = provider.String
		sub.Amount = parseMoney(amount)
		sub.EndDate, _ = engine.ParseDate(endDate)
		sub.DaysUntilExpiry = engine.DaysBetween(today, sub.EndDate)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// RenewSubscription moves a subscription's end date forward.
func (s *Store) RenewSubscription(ctx context.Context, id engine.MovementID, newEnd engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE movements SET subscription_end_date = ? WHERE id = ? AND is_subscription = TRUE",
		newEnd.String(), string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrMovementNotFound
	}
	return nil
}

// SetAutoRenew toggles a subscription's auto-renew flag.
func (s *Store) SetAutoRenew(ctx context.Context, id engine.MovementID, autoRenew bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE movements SET auto_renew = ? WHERE id = ? AND is_subscription = TRUE",
		autoRenew, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrMovementNotFound
	}
	return nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

// MonthlySummary aggregates confirmed movements for one calendar month.
func (s *Store) MonthlySummary(ctx context.Context, userID engine.UserID, year int, month time.Month) (engine.MonthlySummary, error) {
	from := engine.StartOfMonth(year, month)
	to := engine.EndOfMonth(year, month)

	income, err := s.IncomeTotal(ctx, userID, from, to)
	if err != nil {
		return engine.MonthlySummary{}, err
	}
	expense, err := s.SpendingTotal(ctx, userID, from, to, "")
	if err != nil {
		return engine.MonthlySummary{}, err
	}

	return engine.MonthlySummary{
		Year:    year,
		Month:   int(month),
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
	}, nil
}

// =============================================================================
// OWNERS - Scheduler discovery
// =============================================================================

// Owners returns every user id that has data the engine can act on.
func (s *Store) Owners(ctx context.Context) ([]engine.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM recurring_rules
		UNION SELECT DISTINCT user_id FROM alert_rules
		UNION SELECT DISTINCT user_id FROM movements`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var owners []engine.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, engine.UserID(id))
	}
	return owners, rows.Err()
}

// Reset clears all data. Demo seeding only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"engine_runs", "alerts", "alert_rules", "movements", "recurring_rules",
		"savings_goals", "investments", "debts", "categories", "accounts",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// ENGINE RUNS - Scheduler audit trail
// =============================================================================

// Run statuses.
const (
	RunPending   = "pending"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// EngineRun records one scheduler pass over one owner.
type EngineRun struct {
	ID           string
	UserID       engine.UserID
	Status       string
	CreatedCount int
	Error        string
	StartedAt    time.Time
	CompletedAt  time.Time
	CreatedAt    time.Time
}

// SaveEngineRun inserts or updates a run record.
func (s *Store) SaveEngineRun(ctx context.Context, run EngineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_runs
		(id, user_id, status, created_count, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			created_count = excluded.created_count,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		run.ID, string(run.UserID), run.Status, run.CreatedCount,
		nullString(run.Error),
		nullTime(run.StartedAt), nullTime(run.CompletedAt),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListEngineRuns returns the most recent runs, newest first.
func (s *Store) ListEngineRuns(ctx context.Context, limit int) ([]EngineRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, status, created_count, error, started_at, completed_at, created_at
		FROM engine_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []EngineRun
	for rows.Next() {
		var run EngineRun
		var errMsg, startedAt, completedAt sql.NullString
		var createdAt string
		if err := rows.Scan(&run.ID, &run.UserID, &run.Status, &run.CreatedCount,
			&errMsg, &startedAt, &completedAt, &createdAt); err != nil {
			return nil, err
		}
		run.Error = errMsg.String
		if startedAt.Valid {
			run.StartedAt, _ = time.Parse(time.RFC3339, startedAt.String)
		}
		if completedAt.Valid {
			run.CompletedAt, _ = time.Parse(time.RFC3339, completedAt.String)
		}
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseMoney(s string) engine.Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return engine.ZeroMoney()
	}
	return engine.Money{Value: d}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
