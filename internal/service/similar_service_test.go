package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/fingerprint"
	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/queue"
)

type similarFixture struct {
	store *mockStore
	queue *mockQueue
	svc   *SimilarService
	m     *metrics.Metrics
	hash  string
	now   time.Time
}

func newSimilarFixture(t *testing.T, provider string) *similarFixture {
	t.Helper()
	store := newMockStore()
	q := newMockQueue()
	m := metrics.NewMetrics()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store.listings["123"] = &models.ListingCacheEntry{
		ListingID:  "123",
		ListingURL: testListingURL,
		Listing:    macbookListing(),
		Provider:   provider,
		ComputedAt: now,
	}

	enqueuer := NewEnqueueService(q, store, NewEnqueueThrottle(6), m)
	enqueuer.now = func() time.Time { return now }
	svc := NewSimilarService(store, store, store, enqueuer, m, provider, 6*time.Hour)
	svc.now = func() time.Time { return now }

	return &similarFixture{
		store: store,
		queue: q,
		svc:   svc,
		m:     m,
		hash:  fingerprint.Build(macbookListing()).Hash,
		now:   now,
	}
}

func (f *similarFixture) cache(computedAt time.Time) {
	f.store.similar[storeKey("123", f.hash)] = models.NewSimilarListingsCacheEntry("123", f.hash,
		[]models.NormalizedComparable{{Title: "MacBook Air", Price: 600, Link: "https://www.facebook.com/marketplace/item/9/", Image: "a.jpg"}},
		computedAt, 6*time.Hour)
}

func TestSimilarService_Ready(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	f.cache(f.now.Add(-time.Hour))

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarReady || res.Source != SourceCache {
		t.Errorf("expected ready from cache, got %s/%s", res.Status, res.Source)
	}
	if len(res.Listings) != 1 || res.QueryHash != f.hash {
		t.Errorf("unexpected result %+v", res)
	}
	if len(f.queue.enqueued) != 0 {
		t.Error("expected no enqueue on a cache hit")
	}
	if f.m.GetSnapshot()["cache_hits"] != 1 {
		t.Errorf("expected cache_hits 1, got %d", f.m.GetSnapshot()["cache_hits"])
	}
}

func TestSimilarService_InlineBackfill(t *testing.T) {
	f := newSimilarFixture(t, "external")
	f.store.listings["123"].InlineSimilar = []models.NormalizedComparable{
		{Title: "MacBook Air M1", Price: 450, Link: "https://www.facebook.com/marketplace/item/7/"},
	}

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarReady || res.Source != SourceInline {
		t.Errorf("expected inline ready, got %s/%s", res.Status, res.Source)
	}

	entry := f.store.similar[storeKey("123", f.hash)]
	if entry == nil || len(entry.Listings) != 1 {
		t.Fatalf("expected backfilled cache entry, got %+v", entry)
	}
	if !entry.ExpiresAt.Equal(f.now.Add(6 * time.Hour)) {
		t.Errorf("expected expiry now+6h, got %v", entry.ExpiresAt)
	}
}

func TestSimilarService_PendingOnEnqueue(t *testing.T) {
	f := newSimilarFixture(t, "internal")

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarPending {
		t.Fatalf("expected pending, got %s", res.Status)
	}
	if res.RetryAfterMs != 2000 {
		t.Errorf("expected retryAfterMs 2000, got %d", res.RetryAfterMs)
	}
	if res.JobID != queue.JobID("123", f.hash) {
		t.Errorf("expected deterministic job id, got %s", res.JobID)
	}

	payload, ok := f.queue.enqueued[res.JobID]
	if !ok {
		t.Fatal("expected job in queue")
	}
	if payload.Query.Hash != f.hash || payload.Query.MinPrice == nil {
		t.Errorf("expected fingerprinted query in payload, got %+v", payload.Query)
	}
	if f.m.GetSnapshot()["cache_misses"] != 1 {
		t.Errorf("expected cache_misses 1, got %d", f.m.GetSnapshot()["cache_misses"])
	}
}

func TestSimilarService_ReusesOutstandingJob(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	f.store.statuses[storeKey("123", f.hash)] = &models.JobStatusEntry{
		ListingID: "123", QueryHash: f.hash, JobID: "existing-job",
		Status: models.StatusProcessing, UpdatedAt: f.now.Add(-time.Minute),
	}

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarPending || res.JobID != "existing-job" {
		t.Errorf("expected pending on the existing job, got %+v", res)
	}
	if len(f.queue.enqueued) != 0 {
		t.Error("expected no new enqueue")
	}
}

func TestSimilarService_StuckJobIsReenqueued(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	f.store.statuses[storeKey("123", f.hash)] = &models.JobStatusEntry{
		ListingID: "123", QueryHash: f.hash, JobID: "old",
		Status: models.StatusProcessing, UpdatedAt: f.now.Add(-time.Hour),
	}

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarPending || len(f.queue.enqueued) != 1 {
		t.Errorf("expected a fresh enqueue, got %+v", res)
	}
}

func TestSimilarService_TerminalJobIsReenqueued(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	f.store.statuses[storeKey("123", f.hash)] = &models.JobStatusEntry{
		ListingID: "123", QueryHash: f.hash, JobID: queue.JobID("123", f.hash),
		Status: models.StatusFailed, UpdatedAt: f.now.Add(-time.Minute),
	}

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarPending || len(f.queue.enqueued) != 1 {
		t.Errorf("expected a fresh enqueue, got %+v", res)
	}
	if f.store.statuses[storeKey("123", f.hash)].Status != models.StatusPending {
		t.Error("expected status to be reset to pending")
	}
}

func TestSimilarService_PendingEvenWithStaleWhenEnqueued(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	f.cache(f.now.Add(-7 * time.Hour))

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarPending {
		t.Errorf("expected pending, got %s", res.Status)
	}
}

func TestSimilarService_StaleOnEnqueueFailure(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	f.cache(f.now.Add(-7 * time.Hour))
	f.queue.enqueueError = errors.New("redis unavailable")

	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if res.Status != SimilarStale || res.Warning == "" {
		t.Errorf("expected stale with warning, got %+v", res)
	}
	if len(res.Listings) != 1 {
		t.Errorf("expected stale payload, got %d listings", len(res.Listings))
	}
	if f.m.GetSnapshot()["stale_served"] != 1 {
		t.Errorf("expected stale_served 1, got %d", f.m.GetSnapshot()["stale_served"])
	}
}

func TestSimilarService_ErrorOnEnqueueFailureWithoutCache(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	f.queue.enqueueError = errors.New("redis unavailable")

	_, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err == nil || !errors.Is(err, f.queue.enqueueError) {
		t.Errorf("expected wrapped enqueue error, got %v", err)
	}
}

func TestSimilarService_ExternalProvider(t *testing.T) {
	f := newSimilarFixture(t, "external")

	if _, err := f.svc.GetSimilarListings(context.Background(), "123"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	f.cache(f.now.Add(-7 * time.Hour))
	res, err := f.svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if res.Status != SimilarStale {
		t.Errorf("expected stale, got %s", res.Status)
	}
	if len(f.queue.enqueued) != 0 {
		t.Error("expected no enqueue for an external provider")
	}
}

func TestSimilarService_MissingListing(t *testing.T) {
	f := newSimilarFixture(t, "internal")

	if _, err := f.svc.GetSimilarListings(context.Background(), "999"); !errors.Is(err, ErrListingNotFound) {
		t.Errorf("expected ErrListingNotFound, got %v", err)
	}

	var ve *apperr.ValidationError
	if _, err := f.svc.GetSimilarListings(context.Background(), ""); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestSimilarService_CacheReadErrorIsMiss(t *testing.T) {
	f := newSimilarFixture(t, "internal")
	svc := NewSimilarService(f.store, failingSimilarCache{}, f.store, NewEnqueueService(f.queue, f.store, nil, f.m), f.m, "internal", 6*time.Hour)

	res, err := svc.GetSimilarListings(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Status != SimilarPending {
		t.Errorf("expected pending after a failed cache read, got %s", res.Status)
	}
}

type failingSimilarCache struct{}

func (failingSimilarCache) GetSimilarListings(ctx context.Context, listingID, queryHash string) (*models.SimilarListingsCacheEntry, error) {
	return nil, &apperr.CacheIOError{Op: "get similar listings", Err: errors.New("locked")}
}

func (failingSimilarCache) UpsertSimilarListings(ctx context.Context, entry *models.SimilarListingsCacheEntry) error {
	return &apperr.CacheIOError{Op: "upsert similar listings", Err: errors.New("locked")}
}
