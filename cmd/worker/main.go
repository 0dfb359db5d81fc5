package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/config"
	"github.com/tanner-pham/Baller-sub000/internal/db"
	"github.com/tanner-pham/Baller-sub000/internal/handler"
	"github.com/tanner-pham/Baller-sub000/internal/logging"
	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/queue"
	"github.com/tanner-pham/Baller-sub000/internal/repository"
	"github.com/tanner-pham/Baller-sub000/internal/scheduler"
	"github.com/tanner-pham/Baller-sub000/internal/scrape"
	"github.com/tanner-pham/Baller-sub000/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.Setup("worker", cfg.LogLevel)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to initialize repository: %v", err)
	}
	defer store.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	q := queue.NewRedisQueue(rdb, queue.Options{
		MaxAttempts: cfg.JobMaxAttempts,
		BackoffBase: cfg.JobBackoffBase,
		Lease:       cfg.JobLease,
	})

	fetcher, closeFetcher, err := scrape.NewFetcherFromConfig(cfg)
	if err != nil {
		log.Fatalf("failed to initialize fetcher: %v", err)
	}
	defer closeFetcher()

	metricsInstance := metrics.NewMetrics()

	// Two rounds of page fetches plus settle time, kept inside the lease.
	jobTimeout := 2*(cfg.FetchTimeout+cfg.SettleDelay) + 30*time.Second
	if jobTimeout > cfg.JobLease {
		jobTimeout = cfg.JobLease
	}
	workerService := service.NewWorkerService(
		q,
		scrape.NewExecutor(fetcher, cfg.MarketplaceBaseURL),
		store,
		store,
		metricsInstance,
		service.WorkerOptions{CacheTTL: cfg.SimilarListingsTTL, JobTimeout: jobTimeout},
	)

	reaper := scheduler.NewReaper(q, cfg.ReaperSchedule)
	if err := reaper.Start(ctx); err != nil {
		log.Fatalf("failed to start reaper: %v", err)
	}

	healthServer := &http.Server{
		Addr:         ":" + cfg.WorkerPort,
		Handler:      handler.NewHealthRouter(metricsInstance),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("worker health server starting", "port", cfg.WorkerPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("shutting down worker, draining in-flight jobs")
		cancel()
	}()

	slog.Info("worker pool started", "concurrency", cfg.WorkerConcurrency, "max_attempts", cfg.JobMaxAttempts)
	workerService.Run(ctx, cfg.WorkerConcurrency)

	reaper.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down health server", "error", err)
	}
	slog.Info("worker stopped")
}
