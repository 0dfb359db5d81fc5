package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/queue"
	"github.com/tanner-pham/Baller-sub000/internal/repository"
)

// WorkQueue is the consumer side of the similar-listings queue.
type WorkQueue interface {
	Reserve(ctx context.Context) (*queue.Job, error)
	Complete(ctx context.Context, job *queue.Job) error
	Fail(ctx context.Context, job *queue.Job, cause error) (queue.FailOutcome, error)
}

// SimilarScraper runs one similar-listings scrape.
type SimilarScraper interface {
	ScrapeSimilar(ctx context.Context, query models.SimilarSearchQuery) ([]models.NormalizedComparable, error)
}

// WorkerOptions tunes a WorkerService. Zero values fall back to defaults.
type WorkerOptions struct {
	CacheTTL     time.Duration
	JobTimeout   time.Duration
	IdleInterval time.Duration
}

// WorkerService handles worker operations
type WorkerService struct {
	queue    WorkQueue
	scraper  SimilarScraper
	cache    repository.SimilarListingsCache
	statuses repository.JobStatusRepository
	metrics  *metrics.Metrics
	opts     WorkerOptions
	now      func() time.Time
}

// NewWorkerService creates a new worker service
func NewWorkerService(q WorkQueue, scraper SimilarScraper, cache repository.SimilarListingsCache, statuses repository.JobStatusRepository, metrics *metrics.Metrics, opts WorkerOptions) *WorkerService {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 3 * time.Minute
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = time.Second
	}
	return &WorkerService{
		queue:    q,
		scraper:  scraper,
		cache:    cache,
		statuses: statuses,
		metrics:  metrics,
		opts:     opts,
		now:      time.Now,
	}
}

// Run starts concurrency consumers and blocks until ctx is cancelled and
// every in-flight job has finished.
func (s *WorkerService) Run(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			slog.Info("worker started", "worker", worker)
			s.ProcessJobs(ctx)
			slog.Info("worker stopped", "worker", worker)
		}(i + 1)
	}
	wg.Wait()
}

// ProcessJobs continuously processes jobs
func (s *WorkerService) ProcessJobs(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			processed, err := s.ProcessNext(ctx)
			if err != nil {
				slog.Error("error reserving job", "error", err)
				s.idle(ctx)
				continue
			}
			if !processed {
				s.idle(ctx)
			}
		}
	}
}

// ProcessNext reserves and processes at most one job. It reports whether a
// job was available.
func (s *WorkerService) ProcessNext(ctx context.Context) (bool, error) {
	job, err := s.queue.Reserve(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	// A reserved job runs to completion even when shutdown starts.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.JobTimeout)
	defer cancel()

	slog.Info("job reserved", "job_id", job.ID, "listing_id", job.Payload.ListingID,
		"query_hash", job.Payload.Query.Hash, "attempt", job.Attempts)
	s.processJob(jobCtx, job)
	return true, nil
}

// processJob processes a single job
func (s *WorkerService) processJob(ctx context.Context, job *queue.Job) {
	p := job.Payload
	if p.ListingID == "" || p.Query.Hash == "" {
		s.handleJobFailure(ctx, job, apperr.Validationf("job payload is missing listingId or query hash"))
		return
	}

	start := s.now()
	s.recordStatus(ctx, job, models.StatusProcessing, nil)

	listings, err := s.scraper.ScrapeSimilar(ctx, p.Query)
	if err != nil {
		s.metrics.IncrementScrapesFailed()
		s.handleJobFailure(ctx, job, err)
		return
	}

	entry := models.NewSimilarListingsCacheEntry(p.ListingID, p.Query.Hash, listings, s.now(), s.opts.CacheTTL)
	if err := s.cache.UpsertSimilarListings(ctx, entry); err != nil {
		s.handleJobFailure(ctx, job, err)
		return
	}

	if err := s.queue.Complete(ctx, job); err != nil {
		if errors.Is(err, queue.ErrLeaseLost) {
			// The cache row is written; whoever holds the job now owns its status.
			slog.Warn("job lease lost before completion", "job_id", job.ID, "attempt", job.Attempts)
			return
		}
		slog.Error("error completing job", "job_id", job.ID, "error", err)
	}
	s.recordStatus(ctx, job, models.StatusCompleted, nil)

	s.metrics.IncrementJobsCompleted()
	slog.Info("job completed", "job_id", job.ID, "listing_id", p.ListingID,
		"results", len(entry.Listings), "duration_ms", s.now().Sub(start).Milliseconds())
}

// handleJobFailure hands the failure to the queue's retry policy and mirrors
// the outcome into the status projection.
func (s *WorkerService) handleJobFailure(ctx context.Context, job *queue.Job, cause error) {
	out, err := s.queue.Fail(ctx, job, cause)
	if errors.Is(err, queue.ErrLeaseLost) {
		slog.Warn("job lease lost before failure was recorded", "job_id", job.ID,
			"attempt", job.Attempts, "error", cause.Error())
		return
	}
	if err != nil {
		slog.Error("error recording job failure", "job_id", job.ID, "error", err)
		out.Retrying = apperr.IsRetryable(cause) && job.Attempts < job.MaxAttempts
	}

	msg := cause.Error()
	if out.Retrying {
		s.recordStatus(ctx, job, models.StatusPending, &msg)
		s.metrics.IncrementJobsRetried()
		slog.Warn("job failed, retrying", "job_id", job.ID, "attempt", job.Attempts,
			"max_attempts", job.MaxAttempts, "next_run_at", out.NextRunAt, "kind", apperr.Kind(cause), "error", msg)
		return
	}

	s.recordStatus(ctx, job, models.StatusFailed, &msg)
	s.metrics.IncrementJobsFailed()
	slog.Error("job failed", "job_id", job.ID, "attempt", job.Attempts,
		"kind", apperr.Kind(cause), "error", msg)
}

// recordStatus upserts the job's status row, keeping the original enqueue time.
func (s *WorkerService) recordStatus(ctx context.Context, job *queue.Job, status models.JobStatus, errMsg *string) {
	p := job.Payload
	if p.ListingID == "" || p.Query.Hash == "" {
		return
	}

	now := s.now()
	entry := &models.JobStatusEntry{
		ListingID:      p.ListingID,
		QueryHash:      p.Query.Hash,
		JobID:          job.ID,
		Status:         status,
		AttemptCount:   job.Attempts,
		ErrorMessage:   errMsg,
		LastEnqueuedAt: now,
		UpdatedAt:      now,
	}
	existing, err := s.statuses.GetJobStatus(ctx, p.ListingID, p.Query.Hash)
	if err != nil {
		slog.Warn("error reading job status", "job_id", job.ID, "error", err)
	} else if existing != nil {
		entry.LastEnqueuedAt = existing.LastEnqueuedAt
	}
	if status == models.StatusCompleted {
		entry.CompletedAt = &now
	}

	if err := s.statuses.UpsertJobStatus(ctx, entry); err != nil {
		slog.Error("error updating job status", "job_id", job.ID, "status", status, "error", err)
	}
}

func (s *WorkerService) idle(ctx context.Context) {
	t := time.NewTimer(s.opts.IdleInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
