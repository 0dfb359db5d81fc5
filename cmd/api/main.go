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
	"github.com/tanner-pham/Baller-sub000/internal/scrape"
	"github.com/tanner-pham/Baller-sub000/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logging.Setup("api", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize repository
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
	executor := scrape.NewExecutor(fetcher, cfg.MarketplaceBaseURL)

	metricsInstance := metrics.NewMetrics()

	var scorer service.ConditionScorer
	if cfg.ConditionScorerURL != "" {
		scorer = service.NewHTTPConditionScorer(cfg.ConditionScorerURL, cfg.FetchTimeout)
	}

	// Initialize services
	enqueueService := service.NewEnqueueService(q, store, service.NewEnqueueThrottle(cfg.EnqueueLimitPerMinute), metricsInstance)
	listingService := service.NewListingService(executor, store, store, scorer, metricsInstance, cfg.ListingProvider, cfg.MarketplaceBaseURL)
	similarService := service.NewSimilarService(store, store, store, enqueueService, metricsInstance, cfg.ListingProvider, cfg.SimilarListingsTTL)

	router := handler.NewRouter(
		handler.NewJobHandler(enqueueService, listingService),
		handler.NewConsumerHandler(similarService, listingService),
		metricsInstance,
		cfg.InternalAPIToken,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 30*time.Second,
	}

	go func() {
		slog.Info("api server starting", "port", cfg.Port, "provider", cfg.ListingProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error shutting down server", "error", err)
	}
	slog.Info("server stopped")
}
