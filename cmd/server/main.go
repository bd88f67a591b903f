/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the gym session-ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Optionally load a demo scenario
  5. Start server with graceful shutdown

CONFIGURATION (env / flag):
  PORT / -port          HTTP server port (default: 8080)
  DB_PATH / -db         SQLite database path (default: gym.db)
                        Use ":memory:" for in-memory database
  TIMEZONE / -tz        Calendar for attendance day buckets (default: Local)
  CORS_ORIGINS          Comma-separated allowed origins
  SEED_SCENARIO / -seed Demo scenario loaded at startup
  SHUTDOWN_TIMEOUT      Grace period for in-flight requests (default: 30s)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete
  3. Close database connection
  4. Exit
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/gym-ledger/api"
	"github.com/warp/gym-ledger/config"
	"github.com/warp/gym-ledger/metrics"
	"github.com/warp/gym-ledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	loc, _ := cfg.Location()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath, sqlite.WithLocation(loc))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store, api.Options{
		Location:    loc,
		Metrics:     metrics.New(),
		CORSOrigins: cfg.CORSOrigins,
	})

	if cfg.SeedScenario != "" {
		if err := handler.Load(context.Background(), cfg.SeedScenario); err != nil {
			log.Printf("Warning: Failed to load scenario %q: %v", cfg.SeedScenario, err)
		} else {
			log.Printf("Loaded scenario %q", cfg.SeedScenario)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d (db=%s, tz=%s)", cfg.Port, cfg.DBPath, loc)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
