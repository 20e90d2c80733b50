/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/engine/*       Engine entry points and scheduler
  /api/users/{id}/*   Per-owner reads and rule authoring
  /api/rules/*        Recurring rule mutation
  /api/movements/*    Pending lifecycle and subscriptions
  /api/alerts/*       Alert mutation
  /api/alert-rules/*  Alert rule mutation
  /api/scenarios/*    Demo data loaders

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Engine entry points
		r.Route("/engine", func(r chi.Router) {
			r.Post("/generate", h.RunGeneration)
			r.Post("/alerts/run", h.RunAlertChecks)
			r.Get("/runs", h.ListEngineRuns)
			r.Post("/runs/trigger", h.TriggerEngineRuns)
		})

		// Per-owner routes
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/rules", h.ListRules)
			r.Post("/rules", h.CreateRule)
			r.Get("/movements/pending", h.ListPendingMovements)
			r.Get("/alerts", h.ListAlerts)
			r.Post("/alerts/read-all", h.MarkAllAlertsRead)
			r.Get("/alert-rules", h.ListAlertRules)
			r.Post("/alert-rules", h.CreateAlertRule)
			r.Get("/subscriptions/expiring", h.ListExpiringSubscriptions)
			r.Get("/summary", h.GetMonthlySummary)
		})

		// Recurring rule mutation
		r.Route("/rules", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateRule)
		})

		// Movement lifecycle and subscriptions
		r.Route("/movements", func(r chi.Router) {
			r.Post("/{id}/confirm", h.ConfirmMovement)
			r.Post("/{id}/renew", h.RenewSubscription)
			r.Delete("/{id}", h.DiscardMovement)
		})

		// Alert mutation
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/{id}/read", h.MarkAlertRead)
			r.Delete("/{id}", h.DeleteAlert)
		})

		// Alert rule mutation
		r.Route("/alert-rules", func(r chi.Router) {
			r.Patch("/{id}", h.UpdateAlertRule)
			r.Delete("/{id}", h.DeleteAlertRule)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
