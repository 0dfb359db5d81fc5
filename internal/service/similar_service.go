package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/config"
	"github.com/tanner-pham/Baller-sub000/internal/fingerprint"
	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/repository"
)

// SimilarStatus is the state a similar-listings request resolved to.
type SimilarStatus string

const (
	SimilarReady   SimilarStatus = "ready"
	SimilarPending SimilarStatus = "pending"
	SimilarStale   SimilarStatus = "stale"
)

const (
	// DefaultRetryAfter is the polling hint returned with a pending answer.
	DefaultRetryAfter = 2 * time.Second

	// A non-terminal status row not touched for this long is treated as
	// abandoned and a fresh enqueue is attempted.
	defaultStuckAfter = 15 * time.Minute

	staleSimilarWarning = "similar listings could not be refreshed; serving expired results"
)

const (
	SourceCache  = "cache"
	SourceInline = "inline"
)

// SimilarResult is the orchestrator's answer for one base listing.
type SimilarResult struct {
	Status       SimilarStatus                 `json:"status"`
	ListingID    string                        `json:"listingId"`
	QueryHash    string                        `json:"queryHash"`
	Listings     []models.NormalizedComparable `json:"listings"`
	ComputedAt   *time.Time                    `json:"computedAt,omitempty"`
	ExpiresAt    *time.Time                    `json:"expiresAt,omitempty"`
	Source       string                        `json:"source,omitempty"`
	JobID        string                        `json:"jobId,omitempty"`
	RetryAfterMs int64                         `json:"retryAfterMs,omitempty"`
	Warning      string                        `json:"warning,omitempty"`
}

// Enqueuer submits similar-listings jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, req *models.EnqueueSimilarRequest) (*models.EnqueueResult, error)
}

// SimilarService answers similar-listings requests from the cache, from
// inline provider data or by scheduling the async scrape.
type SimilarService struct {
	listings   repository.ListingCache
	similar    repository.SimilarListingsCache
	statuses   repository.JobStatusRepository
	enqueuer   Enqueuer
	metrics    *metrics.Metrics
	provider   string
	ttl        time.Duration
	stuckAfter time.Duration
	now        func() time.Time
}

func NewSimilarService(listings repository.ListingCache, similar repository.SimilarListingsCache, statuses repository.JobStatusRepository, enqueuer Enqueuer, metrics *metrics.Metrics, provider string, ttl time.Duration) *SimilarService {
	return &SimilarService{
		listings:   listings,
		similar:    similar,
		statuses:   statuses,
		enqueuer:   enqueuer,
		metrics:    metrics,
		provider:   provider,
		ttl:        ttl,
		stuckAfter: defaultStuckAfter,
		now:        time.Now,
	}
}

// GetSimilarListings resolves a request in this order: fresh cache, inline
// provider data, provider mode, an outstanding job, a new enqueue, and
// finally stale data when the enqueue fails.
func (s *SimilarService) GetSimilarListings(ctx context.Context, listingID string) (*SimilarResult, error) {
	if listingID == "" {
		return nil, apperr.Validationf("listingId is required")
	}

	base, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base listing: %w", err)
	}
	if base == nil {
		return nil, ErrListingNotFound
	}

	query := fingerprint.Build(base.Listing)
	log := slog.With("listing_id", listingID, "query_hash", query.Hash)

	cached, err := s.similar.GetSimilarListings(ctx, listingID, query.Hash)
	if err != nil {
		log.Warn("similar listings cache read failed", "error", err)
		cached = nil
	}

	now := s.now()
	if cached != nil && cached.IsFresh(now) {
		s.metrics.IncrementCacheHits()
		return readyResult(cached, SourceCache), nil
	}
	s.metrics.IncrementCacheMisses()

	if len(base.InlineSimilar) > 0 {
		entry := models.NewSimilarListingsCacheEntry(listingID, query.Hash, base.InlineSimilar, now, s.ttl)
		if err := s.similar.UpsertSimilarListings(ctx, entry); err != nil {
			log.Error("failed to backfill similar listings", "error", err)
		}
		return readyResult(entry, SourceInline), nil
	}

	if s.provider != config.ProviderInternal {
		if cached != nil {
			return s.staleResult(cached), nil
		}
		return nil, ErrProviderUnavailable
	}

	status, err := s.statuses.GetJobStatus(ctx, listingID, query.Hash)
	if err != nil {
		log.Warn("job status read failed", "error", err)
	} else if status != nil && !status.Status.IsTerminal() && now.Sub(status.UpdatedAt) < s.stuckAfter {
		return pendingResult(listingID, query.Hash, status.JobID), nil
	}

	res, err := s.enqueuer.Enqueue(ctx, &models.EnqueueSimilarRequest{
		ListingID:  listingID,
		ListingURL: base.ListingURL,
		QueryHash:  query.Hash,
		QueryText:  query.QueryText,
		Keywords:   query.Keywords,
		Location:   query.Location,
		MinPrice:   query.MinPrice,
		MaxPrice:   query.MaxPrice,
	})
	if err != nil {
		log.Warn("enqueue similar listings failed", "error", err)
		if cached != nil {
			return s.staleResult(cached), nil
		}
		return nil, fmt.Errorf("failed to enqueue similar listings: %w", err)
	}
	return pendingResult(listingID, query.Hash, res.JobID), nil
}

func (s *SimilarService) staleResult(entry *models.SimilarListingsCacheEntry) *SimilarResult {
	s.metrics.IncrementStaleServed()
	res := readyResult(entry, SourceCache)
	res.Status = SimilarStale
	res.Warning = staleSimilarWarning
	return res
}

func readyResult(entry *models.SimilarListingsCacheEntry, source string) *SimilarResult {
	computedAt, expiresAt := entry.ComputedAt, entry.ExpiresAt
	listings := entry.Listings
	if listings == nil {
		listings = []models.NormalizedComparable{}
	}
	return &SimilarResult{
		Status:     SimilarReady,
		ListingID:  entry.ListingID,
		QueryHash:  entry.QueryHash,
		Listings:   listings,
		ComputedAt: &computedAt,
		ExpiresAt:  &expiresAt,
		Source:     source,
	}
}

func pendingResult(listingID, queryHash, jobID string) *SimilarResult {
	return &SimilarResult{
		Status:       SimilarPending,
		ListingID:    listingID,
		QueryHash:    queryHash,
		Listings:     []models.NormalizedComparable{},
		JobID:        jobID,
		RetryAfterMs: DefaultRetryAfter.Milliseconds(),
	}
}
