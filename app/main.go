package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sponsorscout/jobengine/app/api"
	"github.com/sponsorscout/jobengine/app/cache"
	"github.com/sponsorscout/jobengine/app/cfg"
	"github.com/sponsorscout/jobengine/app/classify"
	"github.com/sponsorscout/jobengine/app/database"
	"github.com/sponsorscout/jobengine/app/dedup"
	"github.com/sponsorscout/jobengine/app/pipeline"
	"github.com/sponsorscout/jobengine/app/retention"
	"github.com/sponsorscout/jobengine/app/sources"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting JobEngine", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	jobRepo := database.NewJobRepository(db)

	classifier, err := classify.New(appCfg.SignalsFile)
	if err != nil {
		slog.Error("Failed to build classifier", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: time.Duration(appCfg.SourceTimeout) * time.Second}
	connectors := sources.Registry(httpClient)
	slog.Info("Connectors registered", "count", len(connectors))

	upsertEngine := dedup.NewEngine(jobRepo, classifier)

	cleanupEngine, err := retention.NewEngine(jobRepo, appCfg.InactiveAfterDays, appCfg.DeleteAfterDays)
	if err != nil {
		slog.Error("Failed to build retention engine", "error", err)
		os.Exit(1)
	}

	// Stats survive restarts only when Redis is configured; a nil cache is a
	// no-op everywhere it is used.
	var statsCache *cache.StatsCache
	if appCfg.RedisURL != "" {
		statsCache, err = cache.New(appCfg.RedisURL)
		if err != nil {
			slog.Warn("Stats cache disabled", "error", err)
			statsCache = nil
		}
	}

	coordinator, err := pipeline.NewCoordinator(connectors, jobRepo, upsertEngine, classifier, cleanupEngine, statsCache)
	if err != nil {
		slog.Error("Failed to build coordinator", "error", err)
		os.Exit(1)
	}

	restoreStats(statsCache, coordinator, cleanupEngine)

	coordinator.Start()
	defer coordinator.Stop()
	slog.Info("Scheduler started",
		"run_schedule", appCfg.RunSchedule,
		"cleanup_schedule", appCfg.CleanupSchedule,
		"next_run", coordinator.NextScheduledRun().Format(time.RFC3339))

	handler := api.NewHandler(coordinator, classifier, jobRepo)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if statsCache != nil {
		if err := statsCache.Close(); err != nil {
			slog.Warn("Failed to close stats cache", "error", err)
		}
	}

	// Coordinator is stopped via defer
	slog.Info("Shutdown complete")
}

// restoreStats seeds the in-memory last-run and last-cleanup stats from Redis
// so reporting endpoints keep answering across restarts.
func restoreStats(statsCache *cache.StatsCache, coordinator *pipeline.Coordinator, cleanupEngine *retention.Engine) {
	if statsCache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var lastRun pipeline.RunStats
	if found, err := statsCache.LoadLastRun(ctx, &lastRun); err != nil {
		slog.Warn("Failed to restore run stats", "error", err)
	} else if found {
		coordinator.SetLastRunStats(&lastRun)
		slog.Info("Restored last run stats", "run_id", lastRun.RunID, "finished_at", lastRun.FinishedAt)
	}

	var lastCleanup retention.Stats
	if found, err := statsCache.LoadLastCleanup(ctx, &lastCleanup); err != nil {
		slog.Warn("Failed to restore cleanup stats", "error", err)
	} else if found {
		cleanupEngine.SetLastStats(&lastCleanup)
	}
}
