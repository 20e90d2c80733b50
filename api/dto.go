/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Generation:
    GenerationResultDTO, RuleErrorDTO

  Rules:
    RecurringRuleDTO, CreateRuleRequest, UpdateRuleRequest

  Movements:
    MovementDTO

  Alerts:
    AlertDTO, AlertRuleDTO, SaveAlertRuleRequest

  Subscriptions:
    ExpiringSubscriptionDTO, RenewSubscriptionRequest

  Summary:
    MonthlySummaryDTO

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - engine/types.go: The domain model these project
*/
package api

import (
	"time"

	"github.com/jmdatahub/gestor-engine/engine"
	"github.com/jmdatahub/gestor-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// GenerationResultDTO summarizes one generation pass.
type GenerationResultDTO struct {
	Created int            `json:"created"`
	Errors  []RuleErrorDTO `json:"errors"`
}

// RuleErrorDTO reports a rule that failed during a generation pass.
type RuleErrorDTO struct {
	RuleID string `json:"rule_id"`
	Error  string `json:"error"`
}

// RunEngineRequest selects the owner an engine entry point runs for.
type RunEngineRequest struct {
	UserID string `json:"user_id"`
}

// RecurringRuleDTO represents a recurring rule in API responses.
type RecurringRuleDTO struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	AccountID      string `json:"account_id,omitempty"`
	Kind           string `json:"kind"`
	Amount         string `json:"amount"`
	Category       string `json:"category,omitempty"`
	Description    string `json:"description,omitempty"`
	Frequency      string `json:"frequency"`
	DayOfWeek      int    `json:"day_of_week,omitempty"`
	DayOfMonth     int    `json:"day_of_month,omitempty"`
	NextOccurrence string `json:"next_occurrence"`
	IsActive       bool   `json:"is_active"`
}

// CreateRuleRequest is the request to create a recurring rule. The first
// occurrence is computed server-side from start_date.
type CreateRuleRequest struct {
	AccountID   string  `json:"account_id"`
	Kind        string  `json:"kind"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Frequency   string  `json:"frequency"`
	DayOfWeek   int     `json:"day_of_week"`
	DayOfMonth  int     `json:"day_of_month"`
	StartDate   string  `json:"start_date"` // ISO date, defaults to today
}

// UpdateRuleRequest patches a recurring rule. Nil fields are left unchanged.
type UpdateRuleRequest struct {
	Amount      *float64 `json:"amount,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// MovementDTO represents a ledger movement.
type MovementDTO struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	AccountID       string `json:"account_id,omitempty"`
	Kind            string `json:"kind"`
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	Category        string `json:"category,omitempty"`
	Description     string `json:"description,omitempty"`
	Status          string `json:"status"`
	RecurringRuleID string `json:"recurring_rule_id,omitempty"`
}

// AlertDTO represents an alert in API responses.
type AlertDTO struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Severity  string            `json:"severity"`
	IsRead    bool              `json:"is_read"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// AlertRuleDTO represents a user-authored alert rule.
type AlertRuleDTO struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Operator        string `json:"operator"`
	Threshold       string `json:"threshold"`
	CategoryID      string `json:"category_id,omitempty"`
	AccountID       string `json:"account_id,omitempty"`
	Severity        string `json:"severity"`
	TriggerMode     string `json:"trigger_mode"`
	Period          string `json:"period"`
	Description     string `json:"description,omitempty"`
	IsActive        bool   `json:"is_active"`
	LastTriggeredAt string `json:"last_triggered_at,omitempty"`
}

// SaveAlertRuleRequest creates or updates an alert rule.
type SaveAlertRuleRequest struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Operator    string  `json:"operator"`
	Threshold   float64 `json:"threshold"`
	CategoryID  string  `json:"category_id"`
	AccountID   string  `json:"account_id"`
	Severity    string  `json:"severity"`
	TriggerMode string  `json:"trigger_mode"`
	Period      string  `json:"period"`
	Description string  `json:"description"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ExpiringSubscriptionDTO represents a subscription close to its end date.
type ExpiringSubscriptionDTO struct {
	MovementID      string `json:"movement_id"`
	Description     string `json:"description,omitempty"`
	Provider        string `json:"provider,omitempty"`
	Amount          string `json:"amount"`
	EndDate         string `json:"end_date"`
	AutoRenew       bool   `json:"auto_renew"`
	DaysUntilExpiry int    `json:"days_until_expiry"`
	CategoryName    string `json:"category_name,omitempty"`
}

// RenewSubscriptionRequest extends a subscription's end date.
type RenewSubscriptionRequest struct {
	NewEndDate string `json:"new_end_date"` // ISO date
}

// MonthlySummaryDTO aggregates one calendar month.
type MonthlySummaryDTO struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Net     string `json:"net"`
}

// EngineRunDTO represents one scheduler pass.
type EngineRunDTO struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	CreatedCount int    `json:"created_count"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRuleDTO(r engine.RecurringRule) RecurringRuleDTO {
	return RecurringRuleDTO{
		ID:             string(r.ID),
		UserID:         string(r.UserID),
		AccountID:      r.AccountID,
		Kind:           string(r.Kind),
		Amount:         r.Amount.String(),
		Category:       r.Category,
		Description:    r.Description,
		Frequency:      string(r.Recurrence.Frequency),
		DayOfWeek:      r.Recurrence.DayOfWeek,
		DayOfMonth:     r.Recurrence.DayOfMonth,
		NextOccurrence: r.NextOccurrence.String(),
		IsActive:       r.IsActive,
	}
}

func toRuleDTOs(rules []engine.RecurringRule) []RecurringRuleDTO {
	dtos := make([]RecurringRuleDTO, len(rules))
	for i, r := range rules {
		dtos[i] = toRuleDTO(r)
	}
	return dtos
}

func toMovementDTO(m engine.Movement) MovementDTO {
	return MovementDTO{
		ID:              string(m.ID),
		UserID:          string(m.UserID),
		AccountID:       m.AccountID,
		Kind:            string(m.Kind),
		Amount:          m.Amount.String(),
		Date:            m.Date.String(),
		Category:        m.Category,
		Description:     m.Description,
		Status:          string(m.Status),
		RecurringRuleID: string(m.RecurringRuleID),
	}
}

func toMovementDTOs(movements []engine.Movement) []MovementDTO {
	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(m)
	}
	return dtos
}

func toAlertDTO(a engine.Alert) AlertDTO {
	return AlertDTO{
		ID:        string(a.ID),
		Type:      string(a.Key),
		Title:     a.Title,
		Message:   a.Message,
		Severity:  string(a.Severity),
		IsRead:    a.IsRead,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAlertDTOs(alerts []engine.Alert) []AlertDTO {
	dtos := make([]AlertDTO, len(alerts))
	for i, a := range alerts {
		dtos[i] = toAlertDTO(a)
	}
	return dtos
}

func toAlertRuleDTO(r engine.AlertRule) AlertRuleDTO {
	dto := AlertRuleDTO{
		ID:          string(r.ID),
		UserID:      string(r.UserID),
		Name:        r.Name,
		Type:        string(r.Type),
		Operator:    string(r.Condition.Operator),
		Threshold:   r.Condition.Threshold.String(),
		CategoryID:  r.Condition.CategoryID,
		AccountID:   r.Condition.AccountID,
		Severity:    string(r.Severity),
		TriggerMode: string(r.TriggerMode),
		Period:      string(r.Period),
		Description: r.Description,
		IsActive:    r.IsActive,
	}
	if r.LastTriggeredAt != nil {
		dto.LastTriggeredAt = r.LastTriggeredAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toAlertRuleDTOs(rules []engine.AlertRule) []AlertRuleDTO {
	dtos := make([]AlertRuleDTO, len(rules))
	for i, r := range rules {
		dtos[i] = toAlertRuleDTO(r)
	}
	return dtos
}

func toSubscriptionDTO(s engine.ExpiringSubscription) ExpiringSubscriptionDTO {
	return ExpiringSubscriptionDTO{
		MovementID:      string(s.MovementID),
		Description:     s.Description,
		Provider:        s.Provider,
		Amount:          s.Amount.String(),
		EndDate:         s.EndDate.String(),
		AutoRenew:       s.AutoRenew,
		DaysUntilExpiry: s.DaysUntilExpiry,
		CategoryName:    s.CategoryName,
	}
}

func toEngineRunDTO(run sqlite.EngineRun) EngineRunDTO {
	dto := EngineRunDTO{
		ID:           run.ID,
		UserID:       string(run.UserID),
		Status:       run.Status,
		CreatedCount: run.CreatedCount,
		Error:        run.Error,
	}
	if !run.StartedAt.IsZero() {
		dto.StartedAt = run.StartedAt.UTC().Format(time.RFC3339)
	}
	if !run.CompletedAt.IsZero() {
		dto.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	return dto
}
