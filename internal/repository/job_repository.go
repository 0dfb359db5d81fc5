package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// ListingCache stores extracted listings by listing id.
type ListingCache interface {
	GetListing(ctx context.Context, listingID string) (*models.ListingCacheEntry, error)
	UpsertListing(ctx context.Context, entry *models.ListingCacheEntry) error
}

// ConditionCache stores condition assessments by listing id.
type ConditionCache interface {
	GetCondition(ctx context.Context, listingID string) (*models.ConditionCacheEntry, error)
	UpsertCondition(ctx context.Context, entry *models.ConditionCacheEntry) error
}

// SimilarListingsCache stores ranked comparables by (listing id, query hash).
type SimilarListingsCache interface {
	GetSimilarListings(ctx context.Context, listingID, queryHash string) (*models.SimilarListingsCacheEntry, error)
	UpsertSimilarListings(ctx context.Context, entry *models.SimilarListingsCacheEntry) error
}

// JobStatusRepository is the polled projection of queue jobs.
type JobStatusRepository interface {
	GetJobStatus(ctx context.Context, listingID, queryHash string) (*models.JobStatusEntry, error)
	GetJobStatusByJobID(ctx context.Context, jobID string) (*models.JobStatusEntry, error)
	UpsertJobStatus(ctx context.Context, entry *models.JobStatusEntry) error
	ListJobStatuses(ctx context.Context, status models.JobStatus) ([]*models.JobStatusEntry, error)
}

// Store bundles every table the service reads and writes. Get methods return
// nil, nil for a missing row; upserts overwrite on the unique key.
type Store interface {
	ListingCache
	ConditionCache
	SimilarListingsCache
	JobStatusRepository
	Close() error
}

// listingPayload is the JSON column of listing_cache.
type listingPayload struct {
	Listing       models.NormalizedListing      `json:"listing"`
	InlineSimilar []models.NormalizedComparable `json:"inlineSimilar,omitempty"`
}

func encodeJSON(op string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", &apperr.CacheIOError{Op: op, Err: fmt.Errorf("encode: %w", err)}
	}
	return string(b), nil
}

func decodeJSON(op, raw string, v any) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &apperr.CacheIOError{Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func cacheErr(op string, err error) error {
	return &apperr.CacheIOError{Op: op, Err: err}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func optionalMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func optionalTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := fromMillis(*ms)
	return &t
}
