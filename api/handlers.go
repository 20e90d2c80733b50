/*
handlers.go - HTTP API handlers for the automation engine

PURPOSE:
  Exposes the automation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Engine:
    POST   /api/engine/generate       Run a generation pass for a user
    POST   /api/engine/alerts/run     Run all alert checks for a user
    GET    /api/engine/runs           Scheduler run history
    POST   /api/engine/runs/trigger   Run the scheduler now

  Recurring rules:
    GET    /api/users/{id}/rules      List rules
    POST   /api/users/{id}/rules      Create rule (computes first occurrence)
    PATCH  /api/rules/{id}            Update / toggle

  Movements:
    GET    /api/users/{id}/movements/pending
    POST   /api/movements/{id}/confirm
    DELETE /api/movements/{id}        Discard

  Alerts:
    GET    /api/users/{id}/alerts     (?unread=count for the badge)
    POST   /api/alerts/{id}/read
    POST   /api/users/{id}/alerts/read-all
    DELETE /api/alerts/{id}

  Alert rules, subscriptions, summary: see server.go

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (lifecycle, duplicate)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. The user id in the path is
  trusted. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - engine/engine.go: The entry points these expose
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmdatahub/gestor-engine/engine"
	"github.com/jmdatahub/gestor-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *engine.Engine

	// Scheduler is optional; nil disables the trigger/history endpoints'
	// manual run.
	Scheduler *EngineScheduler

	currentScenario string
}

// NewHandler creates a new handler with the given store and engine.
func NewHandler(store *sqlite.Store, eng *engine.Engine) *Handler {
	return &Handler{Store: store, Engine: eng}
}

// =============================================================================
// ENGINE HANDLERS
// =============================================================================

// RunGeneration runs one idempotent generation pass for a user.
// POST /api/engine/generate
func (h *Handler) RunGeneration(w http.ResponseWriter, r *http.Request) {
	var req RunEngineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", err)
		return
	}

	result, err := h.Engine.RunScheduledGeneration(r.Context(), engine.UserID(req.UserID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Generation pass failed", err)
		return
	}

	dto := GenerationResultDTO{Created: result.Created, Errors: []RuleErrorDTO{}}
	for _, ruleErr := range result.Errors {
		dto.Errors = append(dto.Errors, RuleErrorDTO{
			RuleID: string(ruleErr.RuleID),
			Error:  ruleErr.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// RunAlertChecks runs the built-in checks and the user's alert rules.
// POST /api/engine/alerts/run
func (h *Handler) RunAlertChecks(w http.ResponseWriter, r *http.Request) {
	var req RunEngineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", err)
		return
	}

	h.Engine.RunAllAlertChecks(r.Context(), engine.UserID(req.UserID))
	w.WriteHeader(http.StatusNoContent)
}

// ListEngineRuns returns the scheduler's run history, newest first.
// GET /api/engine/runs
func (h *Handler) ListEngineRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.Store.ListEngineRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list engine runs", err)
		return
	}

	dtos := make([]EngineRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toEngineRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// TriggerEngineRuns kicks the scheduler immediately.
// POST /api/engine/runs/trigger
func (h *Handler) TriggerEngineRuns(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusConflict, "Scheduler is not running", nil)
		return
	}
	h.Scheduler.RunNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// =============================================================================
// RECURRING RULE HANDLERS
// =============================================================================

// ListRules returns a user's recurring rules ordered by next occurrence.
// GET /api/users/{id}/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	rules, err := h.Store.ListRecurringRules(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTOs(rules))
}

// CreateRule creates a recurring rule. The first occurrence is computed from
// start_date (default today): same-day start is allowed for monthly rules,
// weekly rules land on the next configured weekday.
// POST /api/users/{id}/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start := engine.Today()
	if req.StartDate != "" {
		parsed, err := engine.ParseDate(req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date", err)
			return
		}
		start = parsed
	}

	rule := engine.RecurringRule{
		ID:          engine.RuleID(uuid.NewString()),
		UserID:      userID,
		AccountID:   req.AccountID,
		Kind:        engine.MovementKind(req.Kind),
		Amount:      engine.NewMoney(req.Amount),
		Category:    req.Category,
		Description: req.Description,
		Recurrence: engine.Recurrence{
			Frequency:  engine.Frequency(req.Frequency),
			DayOfWeek:  req.DayOfWeek,
			DayOfMonth: req.DayOfMonth,
		},
		IsActive:  true,
		CreatedAt: engine.Today(),
	}
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}
	rule.NextOccurrence = rule.Recurrence.FirstOccurrence(start)

	if err := h.Store.SaveRecurringRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// UpdateRule patches a recurring rule, including toggling is_active.
// PATCH /api/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := engine.RuleID(chi.URLParam(r, "id"))

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.Store.GetRecurringRule(r.Context(), ruleID)
	if err != nil {
		writeStoreError(w, "Failed to load rule", err)
		return
	}

	if req.Amount != nil {
		rule.Amount = engine.NewMoney(*req.Amount)
	}
	if req.Category != nil {
		rule.Category = *req.Category
	}
	if req.Description != nil {
		rule.Description = *req.Description
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := rule.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule", err)
		return
	}

	if err := h.Store.SaveRecurringRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// ListPendingMovements returns a user's pending movements, oldest date first.
// GET /api/users/{id}/movements/pending
func (h *Handler) ListPendingMovements(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	movements, err := h.Store.PendingMovements(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending movements", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTOs(movements))
}

// ConfirmMovement accepts a pending movement into the ledger. Terminal.
// POST /api/movements/{id}/confirm
func (h *Handler) ConfirmMovement(w http.ResponseWriter, r *http.Request) {
	id := engine.MovementID(chi.URLParam(r, "id"))

	if err := h.Store.ConfirmMovement(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to confirm movement", err)
		return
	}

	mv, err := h.Store.GetMovement(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to load movement", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(mv))
}

// DiscardMovement deletes a pending movement. Terminal: the freed slot is
// never regenerated because the rule's schedule has already advanced.
// DELETE /api/movements/{id}
func (h *Handler) DiscardMovement(w http.ResponseWriter, r *http.Request) {
	id := engine.MovementID(chi.URLParam(r, "id"))

	if err := h.Store.DiscardMovement(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to discard movement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

// ListAlerts returns a user's alerts newest-first. With ?unread=count it
// returns only the unread badge count.
// GET /api/users/{id}/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	if r.URL.Query().Get("unread") == "count" {
		count, err := h.Store.UnreadAlertCount(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count alerts", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread": count})
		return
	}

	alerts, err := h.Store.Alerts(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTOs(alerts))
}

// MarkAlertRead flips one alert to read.
// POST /api/alerts/{id}/read
func (h *Handler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id := engine.AlertID(chi.URLParam(r, "id"))

	if err := h.Store.MarkAlertRead(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to mark alert read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllAlertsRead flips all of a user's alerts to read.
// POST /api/users/{id}/alerts/read-all
func (h *Handler) MarkAllAlertsRead(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	if err := h.Store.MarkAllAlertsRead(r.Context(), userID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark alerts read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAlert removes an alert.
// DELETE /api/alerts/{id}
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id := engine.AlertID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteAlert(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ALERT RULE HANDLERS
// =============================================================================

// ListAlertRules returns all of a user's alert rule definitions.
// GET /api/users/{id}/alert-rules
func (h *Handler) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	rules, err := h.Store.ListAlertRules(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alert rules", err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertRuleDTOs(rules))
}

// CreateAlertRule creates an alert rule definition.
// POST /api/users/{id}/alert-rules
func (h *Handler) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	var req SaveAlertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.buildAlertRule(r, userID, engine.AlertRuleID(uuid.NewString()), req)
	if err != nil {
		writeStoreError(w, "Invalid alert rule", err)
		return
	}

	if err := h.Store.SaveAlertRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save alert rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAlertRuleDTO(rule))
}

// UpdateAlertRule replaces an alert rule definition. Re-saving resets
// last_triggered_at, re-arming rules in trigger mode "once".
// PATCH /api/alert-rules/{id}
func (h *Handler) UpdateAlertRule(w http.ResponseWriter, r *http.Request) {
	id := engine.AlertRuleID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetAlertRule(r.Context(), id)
	if err != nil {
		writeStoreError(w, "Failed to load alert rule", err)
		return
	}

	var req SaveAlertRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.buildAlertRule(r, existing.UserID, id, req)
	if err != nil {
		writeStoreError(w, "Invalid alert rule", err)
		return
	}
	rule.CreatedAt = existing.CreatedAt

	if err := h.Store.SaveAlertRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save alert rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertRuleDTO(rule))
}

// DeleteAlertRule removes an alert rule definition.
// DELETE /api/alert-rules/{id}
func (h *Handler) DeleteAlertRule(w http.ResponseWriter, r *http.Request) {
	id := engine.AlertRuleID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteAlertRule(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete alert rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// buildAlertRule validates a request into a rule, checking that any scope
// entity belongs to the requesting user.
func (h *Handler) buildAlertRule(r *http.Request, userID engine.UserID, id engine.AlertRuleID, req SaveAlertRuleRequest) (engine.AlertRule, error) {
	rule := engine.AlertRule{
		ID:     id,
		UserID: userID,
		Name:   req.Name,
		Type:   engine.AlertRuleType(req.Type),
		Condition: engine.Condition{
			Operator:   engine.Operator(req.Operator),
			Threshold:  decimal.NewFromFloat(req.Threshold),
			CategoryID: req.CategoryID,
			AccountID:  req.AccountID,
		},
		Severity:    engine.Severity(req.Severity),
		TriggerMode: engine.TriggerMode(req.TriggerMode),
		Period:      engine.EvaluationPeriod(req.Period),
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if err := rule.Validate(); err != nil {
		return engine.AlertRule{}, err
	}

	// A rule must not reference another user's category or account.
	if rule.Condition.CategoryID != "" {
		name, err := h.Store.CategoryName(r.Context(), userID, rule.Condition.CategoryID)
		if err != nil {
			return engine.AlertRule{}, err
		}
		if name == "" {
			return engine.AlertRule{}, engine.ErrScopeMismatch
		}
	}
	if rule.Condition.AccountID != "" {
		name, err := h.Store.AccountName(r.Context(), userID, rule.Condition.AccountID)
		if err != nil {
			return engine.AlertRule{}, err
		}
		if name == "" {
			return engine.AlertRule{}, engine.ErrScopeMismatch
		}
	}
	return rule, nil
}

// =============================================================================
// SUBSCRIPTION HANDLERS
// =============================================================================

// ListExpiringSubscriptions returns subscriptions ending within ?days
// (default 30), soonest first.
// GET /api/users/{id}/subscriptions/expiring
func (h *Handler) ListExpiringSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid days parameter", err)
			return
		}
		days = parsed
	}

	subs, err := h.Store.ExpiringSubscriptions(r.Context(), userID, engine.Today(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}

	dtos := make([]ExpiringSubscriptionDTO, len(subs))
	for i, s := range subs {
		dtos[i] = toSubscriptionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RenewSubscription extends a subscription's end date.
// POST /api/movements/{id}/renew
func (h *Handler) RenewSubscription(w http.ResponseWriter, r *http.Request) {
	id := engine.MovementID(chi.URLParam(r, "id"))

	var req RenewSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	newEnd, err := engine.ParseDate(req.NewEndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid new_end_date", err)
		return
	}

	if err := h.Store.RenewSubscription(r.Context(), id, newEnd); err != nil {
		writeStoreError(w, "Failed to renew subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// GetMonthlySummary aggregates confirmed movements for one calendar month.
// GET /api/users/{id}/summary?year=&month=
func (h *Handler) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	userID := engine.UserID(chi.URLParam(r, "id"))

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year parameter", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month parameter", err)
		return
	}

	summary, err := h.Store.MonthlySummary(r.Context(), userID, year, time.Month(month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
		return
	}

	writeJSON(w, http.StatusOK, MonthlySummaryDTO{
		Year:    summary.Year,
		Month:   summary.Month,
		Income:  summary.Income.String(),
		Expense: summary.Expense.String(),
		Net:     summary.Net.String(),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps domain errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case engine.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
