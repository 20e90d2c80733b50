/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Gestor automation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file + GESTOR_ env vars)
  2. Initialize SQLite store
  3. Create the engine and API handler
  4. Start the background scheduler (if enabled)
  5. Start server with graceful shutdown

CONFIGURATION:
  See config/config.go. Common overrides:
    GESTOR_SERVER_PORT            HTTP port (default: 8080)
    GESTOR_DATABASE_PATH          SQLite path (default: gestor.db,
                                  ":memory:" for in-memory)
    GESTOR_ENGINE_SPENDING_LIMIT  Monthly spending ceiling (default: 2000)
    GESTOR_SCHEDULER_ENABLED      Background engine passes (default: true)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and close the database
  4. Exit

EXAMPLES:
  # Run with file database
  GESTOR_DATABASE_PATH=./data/gestor.db ./server

  # Run with in-memory database on another port
  GESTOR_DATABASE_PATH=":memory:" GESTOR_SERVER_PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background engine passes
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmdatahub/gestor-engine/api"
	"github.com/jmdatahub/gestor-engine/config"
	"github.com/jmdatahub/gestor-engine/engine"
	"github.com/jmdatahub/gestor-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize engine and handler
	eng := engine.New(store, engine.Options{
		SpendingLimit:  engine.NewMoney(cfg.Engine.SpendingLimit),
		RuleWindowDays: cfg.Engine.RuleWindowDays,
	})
	handler := api.NewHandler(store, eng)

	// Background scheduler
	scheduler := api.NewEngineScheduler(store, eng)
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Enabled = cfg.Scheduler.Enabled
	handler.Scheduler = scheduler
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("📊 API available at http://localhost:%d/api", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
