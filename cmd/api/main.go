package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/dv360-adoption/internal/api/handlers"
	"github.com/dvloznov/dv360-adoption/internal/api/middleware"
	"github.com/dvloznov/dv360-adoption/internal/app"
	"github.com/dvloznov/dv360-adoption/internal/config"
	"github.com/dvloznov/dv360-adoption/internal/jobs/inmemory"
	"github.com/dvloznov/dv360-adoption/internal/logger"
)

func main() {
	// Initialize logger
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Parse command-line flags
	var (
		port   = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		dryRun = flag.Bool("dry-run", false, "Keep rows in memory instead of writing to BigQuery")
	)
	flag.Parse()

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, app.Options{DryRun: *dryRun})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire pipelines")
	}
	defer a.Close()

	// Initialize run infrastructure
	runStore := inmemory.NewStore()
	runQueue := inmemory.NewQueue(cfg.QueueSize, cfg.WorkerCount, runStore)

	// Start workers in background to process queued runs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Int("workers", cfg.WorkerCount).Msg("Starting run workers")
		if err := runQueue.Start(workerCtx, a.Runner.HandleRun); err != nil {
			log.Error().Err(err).Msg("Run workers stopped with error")
		}
	}()

	// Initialize handlers
	pipelinesHandler := handlers.NewPipelinesHandler(a.Runner, runQueue)
	runsHandler := handlers.NewRunsHandler(runStore)

	// Create router
	mux := http.NewServeMux()

	// Pipeline endpoints
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodPost {
			pipelinesHandler.Report(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/sdf", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodPost {
			pipelinesHandler.SDF(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Runs endpoints
	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			runsHandler.ListRuns(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract run ID from path
			runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
			if runID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Run ID is required")
				return
			}
			runsHandler.GetRun(w, r, runID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Synchronous runs hold the connection while the remote job is polled.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Poll.MaxElapsed + 5*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Cancel worker context so in-flight polls stop, then wait for workers
	cancelWorker()
	if err := runQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping run queue")
	}

	log.Info().Msg("Server exited")
}
