package repository

import (
	"context"
	"testing"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// Cases every Store implementation has to pass.

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testGetMissingReturnsNil(t *testing.T, repo Store) {
	t.Helper()
	ctx := context.Background()

	if l, err := repo.GetListing(ctx, "nope"); l != nil || err != nil {
		t.Errorf("expected nil, nil for listing; got %v, %v", l, err)
	}
	if c, err := repo.GetCondition(ctx, "nope"); c != nil || err != nil {
		t.Errorf("expected nil, nil for condition; got %v, %v", c, err)
	}
	if s, err := repo.GetSimilarListings(ctx, "nope", "h"); s != nil || err != nil {
		t.Errorf("expected nil, nil for similar listings; got %v, %v", s, err)
	}
	if j, err := repo.GetJobStatus(ctx, "nope", "h"); j != nil || err != nil {
		t.Errorf("expected nil, nil for job status; got %v, %v", j, err)
	}
	if j, err := repo.GetJobStatusByJobID(ctx, "nope"); j != nil || err != nil {
		t.Errorf("expected nil, nil for job id; got %v, %v", j, err)
	}
}

func testListingUpsertOverwrites(t *testing.T, repo Store) {
	t.Helper()
	ctx := context.Background()

	entry := &models.ListingCacheEntry{
		ListingID:  "1",
		ListingURL: "https://www.facebook.com/marketplace/item/1/",
		Listing:    models.NormalizedListing{Title: models.StringPtr("Desk"), Images: []string{"a.jpg"}},
		Provider:   "internal",
		ComputedAt: t0,
	}
	if err := repo.UpsertListing(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry.Listing.Title = models.StringPtr("Standing desk")
	entry.InlineSimilar = []models.NormalizedComparable{{Title: "Other desk", Link: "x"}}
	entry.ComputedAt = t0.Add(time.Hour)
	if err := repo.UpsertListing(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.GetListing(ctx, "1")
	if err != nil || got == nil {
		t.Fatalf("expected a row, got %v, %v", got, err)
	}
	if models.Deref(got.Listing.Title) != "Standing desk" {
		t.Errorf("expected last write to win, got %q", models.Deref(got.Listing.Title))
	}
	if !got.ComputedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("expected computedAt %v, got %v", t0.Add(time.Hour), got.ComputedAt)
	}
	if len(got.InlineSimilar) != 1 || got.Provider != "internal" {
		t.Errorf("unexpected entry %+v", got)
	}
}

func testConditionRoundTrip(t *testing.T, repo Store) {
	t.Helper()
	ctx := context.Background()

	entry := &models.ConditionCacheEntry{
		ListingID:  "1",
		Assessment: models.ConditionAssessment{Condition: models.ConditionUsedGood, Score: 0.7, Issues: []string{"scratch"}},
		ComputedAt: t0,
	}
	if err := repo.UpsertCondition(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.GetCondition(ctx, "1")
	if err != nil || got == nil {
		t.Fatalf("expected a row, got %v, %v", got, err)
	}
	if got.Assessment.Condition != models.ConditionUsedGood || len(got.Assessment.Issues) != 1 {
		t.Errorf("unexpected assessment %+v", got.Assessment)
	}
}

func testSimilarListingsKeyedByHash(t *testing.T, repo Store) {
	t.Helper()
	ctx := context.Background()

	a := models.NewSimilarListingsCacheEntry("1", "hash-a", []models.NormalizedComparable{{Title: "A", Link: "a"}}, t0, 6*time.Hour)
	b := models.NewSimilarListingsCacheEntry("1", "hash-b", nil, t0, time.Hour)
	for _, e := range []*models.SimilarListingsCacheEntry{a, b} {
		if err := repo.UpsertSimilarListings(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	gotA, _ := repo.GetSimilarListings(ctx, "1", "hash-a")
	if gotA == nil || len(gotA.Listings) != 1 || !gotA.ExpiresAt.Equal(t0.Add(6*time.Hour)) {
		t.Errorf("unexpected entry for hash-a: %+v", gotA)
	}
	gotB, _ := repo.GetSimilarListings(ctx, "1", "hash-b")
	if gotB == nil || gotB.Listings == nil || len(gotB.Listings) != 0 {
		t.Errorf("expected empty non-nil listings for hash-b, got %+v", gotB)
	}
	if !gotB.IsFresh(t0.Add(59*time.Minute)) || gotB.IsFresh(t0.Add(61*time.Minute)) {
		t.Errorf("expected freshness to follow expiresAt")
	}
}

func testJobStatus(t *testing.T, repo Store) {
	t.Helper()
	ctx := context.Background()

	entry := &models.JobStatusEntry{
		ListingID:      "1",
		QueryHash:      "h",
		JobID:          "job-1",
		Status:         models.StatusPending,
		LastEnqueuedAt: t0,
		UpdatedAt:      t0,
	}
	if err := repo.UpsertJobStatus(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := "timeout"
	done := t0.Add(time.Minute)
	entry.Status = models.StatusCompleted
	entry.AttemptCount = 2
	entry.ErrorMessage = &msg
	entry.CompletedAt = &done
	entry.UpdatedAt = done
	if err := repo.UpsertJobStatus(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := repo.GetJobStatusByJobID(ctx, "job-1")
	if err != nil || got == nil {
		t.Fatalf("expected a row, got %v, %v", got, err)
	}
	if got.Status != models.StatusCompleted || got.AttemptCount != 2 {
		t.Errorf("unexpected status row %+v", got)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "timeout" {
		t.Errorf("expected error message to round-trip, got %v", got.ErrorMessage)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("expected completedAt %v, got %v", done, got.CompletedAt)
	}

	completed, err := repo.ListJobStatuses(ctx, models.StatusCompleted)
	if err != nil || len(completed) != 1 {
		t.Errorf("expected one completed job, got %d (%v)", len(completed), err)
	}
	pending, err := repo.ListJobStatuses(ctx, models.StatusPending)
	if err != nil || pending == nil || len(pending) != 0 {
		t.Errorf("expected an empty pending list, got %v (%v)", pending, err)
	}
}

func testJobStatusKeepsOneRowPerKey(t *testing.T, repo Store) {
	t.Helper()
	ctx := context.Background()

	for i, status := range []models.JobStatus{models.StatusPending, models.StatusProcessing, models.StatusFailed} {
		at := t0.Add(time.Duration(i) * time.Minute)
		err := repo.UpsertJobStatus(ctx, &models.JobStatusEntry{
			ListingID: "2", QueryHash: "h", JobID: "job-2", Status: status,
			AttemptCount: i, LastEnqueuedAt: t0, UpdatedAt: at,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := repo.GetJobStatus(ctx, "2", "h")
	if err != nil || got == nil {
		t.Fatalf("expected a row, got %v, %v", got, err)
	}
	if got.Status != models.StatusFailed || got.AttemptCount != 2 {
		t.Errorf("expected the last write to win, got %+v", got)
	}
	if !got.LastEnqueuedAt.Equal(t0) || !got.UpdatedAt.Equal(t0.Add(2*time.Minute)) {
		t.Errorf("unexpected timestamps %+v", got)
	}
	if got.ErrorMessage != nil || got.CompletedAt != nil {
		t.Errorf("expected nil optional fields, got %+v", got)
	}
}
