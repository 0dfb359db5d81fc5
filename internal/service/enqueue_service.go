package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/queue"
	"github.com/tanner-pham/Baller-sub000/internal/repository"
)

var (
	ErrJobNotFound                = errors.New("job not found")
	ErrListingNotFound            = errors.New("listing not found")
	ErrEnqueueThrottled           = errors.New("enqueue rate limit exceeded")
	ErrProviderUnavailable        = errors.New("similar listings provider unavailable")
	ErrConditionScorerUnavailable = errors.New("condition scorer unavailable")
	ErrQueueUnavailable           = errors.New("job queue unavailable")
)

const maxKeywords = 3

// JobQueue is the producer side of the similar-listings queue.
type JobQueue interface {
	State(ctx context.Context, jobID string) (string, error)
	Enqueue(ctx context.Context, jobID string, payload models.SimilarJobPayload) (bool, error)
}

// EnqueueService turns similar-listings requests into queued jobs and keeps
// the job-status projection in step.
type EnqueueService struct {
	queue    JobQueue
	statuses repository.JobStatusRepository
	throttle *EnqueueThrottle
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewEnqueueService(q JobQueue, statuses repository.JobStatusRepository, throttle *EnqueueThrottle, metrics *metrics.Metrics) *EnqueueService {
	return &EnqueueService{
		queue:    q,
		statuses: statuses,
		throttle: throttle,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Enqueue submits a job under the deterministic id for (listingId, queryHash).
// A job that is already waiting or running absorbs the request without
// counting against the throttle.
func (s *EnqueueService) Enqueue(ctx context.Context, req *models.EnqueueSimilarRequest) (*models.EnqueueResult, error) {
	if err := validateEnqueueRequest(req); err != nil {
		return nil, err
	}

	jobID := queue.JobID(req.ListingID, req.QueryHash)
	state, err := s.queue.State(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}
	if queue.IsOutstanding(state) {
		return s.deduplicated(req, jobID), nil
	}

	if s.throttle != nil {
		if err := s.throttle.Allow(jobID); err != nil {
			slog.Warn("enqueue throttled", "job_id", jobID, "listing_id", req.ListingID)
			return nil, err
		}
	}

	// The pending row goes in before the job exists, so every write a worker
	// makes for this job lands after it.
	recorded := s.recordStatus(ctx, req, jobID, models.StatusPending, nil)

	payload := models.SimilarJobPayload{
		ListingID:  req.ListingID,
		ListingURL: req.ListingURL,
		Query:      req.Query(),
	}
	created, err := s.queue.Enqueue(ctx, jobID, payload)
	if err != nil {
		if recorded {
			msg := "enqueue failed: " + err.Error()
			s.recordStatus(ctx, req, jobID, models.StatusFailed, &msg)
		}
		return nil, fmt.Errorf("%w: %w", ErrQueueUnavailable, err)
	}
	if !created {
		return s.deduplicated(req, jobID), nil
	}

	s.metrics.IncrementJobsEnqueued()
	slog.Info("job enqueued", "job_id", jobID, "listing_id", req.ListingID, "query_hash", req.QueryHash)
	return &models.EnqueueResult{JobID: jobID, Created: true}, nil
}

func (s *EnqueueService) deduplicated(req *models.EnqueueSimilarRequest, jobID string) *models.EnqueueResult {
	s.metrics.IncrementJobsDeduplicated()
	slog.Info("job already queued", "job_id", jobID, "listing_id", req.ListingID, "query_hash", req.QueryHash)
	return &models.EnqueueResult{JobID: jobID, Created: false}
}

// recordStatus writes the producer's view of the job. A failed write is only
// logged; the worker rewrites the row once it reserves the job.
func (s *EnqueueService) recordStatus(ctx context.Context, req *models.EnqueueSimilarRequest, jobID string, status models.JobStatus, errMsg *string) bool {
	now := s.now()
	entry := &models.JobStatusEntry{
		ListingID:      req.ListingID,
		QueryHash:      req.QueryHash,
		JobID:          jobID,
		Status:         status,
		ErrorMessage:   errMsg,
		LastEnqueuedAt: now,
		UpdatedAt:      now,
	}
	if err := s.statuses.UpsertJobStatus(ctx, entry); err != nil {
		slog.Error("failed to record job status", "job_id", jobID, "status", status, "error", err)
		return false
	}
	return true
}

// GetJob returns the status entry for a job id
func (s *EnqueueService) GetJob(ctx context.Context, jobID string) (*models.JobStatusEntry, error) {
	entry, err := s.statuses.GetJobStatusByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job status: %w", err)
	}
	if entry == nil {
		return nil, ErrJobNotFound
	}
	return entry, nil
}

// ListJobs lists status entries in the given state
func (s *EnqueueService) ListJobs(ctx context.Context, status models.JobStatus) ([]*models.JobStatusEntry, error) {
	entries, err := s.statuses.ListJobStatuses(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return entries, nil
}

func validateEnqueueRequest(req *models.EnqueueSimilarRequest) error {
	switch {
	case req == nil:
		return apperr.Validationf("request body is required")
	case req.ListingID == "":
		return apperr.Validationf("listingId is required")
	case req.ListingURL == "":
		return apperr.Validationf("listingUrl is required")
	case req.QueryHash == "":
		return apperr.Validationf("queryHash is required")
	case req.QueryText == "":
		return apperr.Validationf("queryText is required")
	case len(req.Keywords) > maxKeywords:
		return apperr.Validationf("at most %d keywords are allowed", maxKeywords)
	case req.MinPrice != nil && req.MaxPrice != nil && *req.MinPrice > *req.MaxPrice:
		return apperr.Validationf("minPrice must not exceed maxPrice")
	}
	return nil
}
