// Package main is the entrypoint for the SentinelQ API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahulnat/sentinelq/internal/api"
	"github.com/rahulnat/sentinelq/internal/api/handler"
	mw "github.com/rahulnat/sentinelq/internal/api/middleware"
	"github.com/rahulnat/sentinelq/internal/api/response"
	"github.com/rahulnat/sentinelq/internal/cache"
	"github.com/rahulnat/sentinelq/internal/compliance"
	"github.com/rahulnat/sentinelq/internal/config"
	"github.com/rahulnat/sentinelq/internal/notify"
	"github.com/rahulnat/sentinelq/internal/scheduler"
	"github.com/rahulnat/sentinelq/internal/store"
)

const shutdownTimeout = 30 * time.Second

const notifyBuffer = 64

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env,
		"max_concurrent_jobs", cfg.Scheduler.MaxConcurrentJobs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store
	pgStore := store.NewPostgresStore(pool)

	// 6. Build the scheduler with its collaborators
	hub := notify.NewHub(notifyBuffer)
	sched := scheduler.New(schedulerConfig(cfg.Scheduler),
		scheduler.WithCache(redisCache),
		scheduler.WithAuditLogger(store.NewAuditRecorder(pgStore)),
		scheduler.WithNotifier(notify.Fanout{hub, notify.LogNotifier{}}),
	)
	if err := compliance.RegisterAll(sched); err != nil {
		return fmt.Errorf("register job handlers: %w", err)
	}
	sched.Start()
	slog.Info("scheduler started",
		"workers", cfg.Scheduler.MaxConcurrentJobs,
		"memory_mb", cfg.Scheduler.MaxMemoryMB,
		"cpu_cores", cfg.Scheduler.MaxCPUCores)

	// 7. Periodic retention sweep
	go retentionLoop(ctx, sched, cfg.Scheduler.Retention)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache),

		SubmitJobHandler:   handler.NewSubmitJobHandler(sched),
		ListJobsHandler:    handler.NewListJobsHandler(sched),
		GetJobHandler:      handler.NewGetJobHandler(sched),
		CancelJobHandler:   handler.NewCancelJobHandler(sched),
		JobBatchesHandler:  handler.NewJobBatchesHandler(sched),
		JobProgressHandler: handler.NewJobProgressHandler(sched),

		StatsHandler:  handler.NewStatsHandler(sched),
		EventsHandler: handler.NewEventsHandler(hub),

		CleanupHandler:     handler.NewCleanupHandler(sched, cfg.Scheduler.Retention),
		AuditEventsHandler: handler.NewAuditEventsHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	sched.Shutdown()
	slog.Info("server stopped gracefully")
	return nil
}

// schedulerConfig maps the env-driven knobs onto the engine config,
// leaving engine-internal defaults in place.
func schedulerConfig(sc config.SchedulerConfig) *scheduler.Config {
	cfg := scheduler.DefaultConfig()
	cfg.MaxConcurrentJobs = sc.MaxConcurrentJobs
	cfg.MaxMemoryMB = sc.MaxMemoryMB
	cfg.MaxCPUCores = sc.MaxCPUCores
	cfg.AutoBatchThreshold = sc.AutoBatchThreshold
	cfg.DefaultBatchSize = sc.DefaultBatchSize
	cfg.AdmissionRetryInterval = sc.AdmissionRetryInterval
	cfg.DefaultMaxAttempts = sc.DefaultMaxAttempts
	cfg.DefaultBackoff = sc.DefaultBackoff
	cfg.BatchResultTTL = sc.BatchResultTTL
	return cfg
}

// retentionLoop sweeps terminal jobs older than the retention window until
// the context is cancelled.
func retentionLoop(ctx context.Context, sched *scheduler.Scheduler, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(retention / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sched.Cleanup(retention); removed > 0 {
				slog.Info("retention sweep", "removed", removed)
			}
		}
	}
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
