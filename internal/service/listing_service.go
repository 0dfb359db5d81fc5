package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/extract"
	"github.com/tanner-pham/Baller-sub000/internal/fingerprint"
	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/repository"
	"github.com/tanner-pham/Baller-sub000/internal/scrape"
)

const (
	staleListingWarning   = "listing could not be refreshed; serving a cached copy"
	staleConditionWarning = "condition could not be refreshed; serving a cached assessment"
)

// ListingScraper scrapes a single listing page.
type ListingScraper interface {
	ScrapeListing(ctx context.Context, listingURL string) (*scrape.ListingScrape, error)
}

// ConditionScorer assesses the physical condition of a listing.
type ConditionScorer interface {
	Score(ctx context.Context, listing models.NormalizedListing) (*models.ConditionAssessment, error)
}

// ListingView is a listing cache entry as served to consumers.
type ListingView struct {
	Entry   *models.ListingCacheEntry
	Stale   bool
	Warning string
	Search  fingerprint.SearchLink
}

// ConditionView is a condition cache entry as served to consumers.
type ConditionView struct {
	Entry   *models.ConditionCacheEntry
	Stale   bool
	Warning string
}

// ListingService serves listings and condition assessments through the
// listing and condition caches.
type ListingService struct {
	scraper    ListingScraper
	listings   repository.ListingCache
	conditions repository.ConditionCache
	scorer     ConditionScorer
	metrics    *metrics.Metrics
	provider   string
	baseURL    string
	now        func() time.Time
}

// NewListingService wires a ListingService. scorer may be nil.
func NewListingService(scraper ListingScraper, listings repository.ListingCache, conditions repository.ConditionCache, scorer ConditionScorer, metrics *metrics.Metrics, provider, baseURL string) *ListingService {
	if baseURL == "" {
		baseURL = fingerprint.DefaultBaseURL
	}
	return &ListingService{
		scraper:    scraper,
		listings:   listings,
		conditions: conditions,
		scorer:     scorer,
		metrics:    metrics,
		provider:   provider,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// FetchListing scrapes a listing page and stores the result in the listing cache.
func (s *ListingService) FetchListing(ctx context.Context, listingURL string) (*scrape.ListingScrape, error) {
	res, _, err := s.scrapeAndStore(ctx, listingURL)
	return res, err
}

// GetListing returns the cached listing for listingURL when it is fresh and
// scrapes it otherwise. When the scrape fails an older cached copy is
// served with a warning.
func (s *ListingService) GetListing(ctx context.Context, listingURL string) (*ListingView, error) {
	listingID, err := extract.ListingIDFromURL(listingURL)
	if err != nil {
		return nil, err
	}

	cached, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		slog.Warn("listing cache read failed", "listing_id", listingID, "error", err)
		cached = nil
	}
	if cached != nil && cached.IsFresh(s.now(), models.ListingCacheTTL) {
		s.metrics.IncrementCacheHits()
		return s.listingView(cached, false, ""), nil
	}
	s.metrics.IncrementCacheMisses()

	_, entry, err := s.scrapeAndStore(ctx, listingURL)
	if err != nil {
		if cached != nil {
			s.metrics.IncrementStaleServed()
			slog.Warn("serving stale listing", "listing_id", listingID, "error", err)
			return s.listingView(cached, true, staleListingWarning), nil
		}
		return nil, err
	}
	return s.listingView(entry, false, ""), nil
}

// GetCondition returns the condition assessment for a cached listing,
// scoring it when no fresh assessment exists.
func (s *ListingService) GetCondition(ctx context.Context, listingID string) (*ConditionView, error) {
	if listingID == "" {
		return nil, apperr.Validationf("listingId is required")
	}

	cached, err := s.conditions.GetCondition(ctx, listingID)
	if err != nil {
		slog.Warn("condition cache read failed", "listing_id", listingID, "error", err)
		cached = nil
	}
	now := s.now()
	if cached != nil && cached.IsFresh(now, models.ListingCacheTTL) {
		s.metrics.IncrementCacheHits()
		return &ConditionView{Entry: cached}, nil
	}
	s.metrics.IncrementCacheMisses()

	stale := func(cause error) (*ConditionView, error) {
		if cached == nil {
			return nil, cause
		}
		s.metrics.IncrementStaleServed()
		slog.Warn("serving stale condition", "listing_id", listingID, "error", cause)
		return &ConditionView{Entry: cached, Stale: true, Warning: staleConditionWarning}, nil
	}

	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return stale(err)
	}
	if listing == nil {
		return stale(ErrListingNotFound)
	}
	if s.scorer == nil {
		return stale(ErrConditionScorerUnavailable)
	}

	assessment, err := s.scorer.Score(ctx, listing.Listing)
	if err != nil {
		return stale(err)
	}

	entry := &models.ConditionCacheEntry{
		ListingID:  listingID,
		Assessment: *assessment,
		ComputedAt: now,
	}
	if err := s.conditions.UpsertCondition(ctx, entry); err != nil {
		slog.Error("failed to cache condition", "listing_id", listingID, "error", err)
	}
	return &ConditionView{Entry: entry}, nil
}

func (s *ListingService) scrapeAndStore(ctx context.Context, listingURL string) (*scrape.ListingScrape, *models.ListingCacheEntry, error) {
	if listingURL == "" {
		return nil, nil, apperr.Validationf("listingUrl is required")
	}

	res, err := s.scraper.ScrapeListing(ctx, listingURL)
	if err != nil {
		s.metrics.IncrementScrapesFailed()
		slog.Warn("listing scrape failed", "url", listingURL, "kind", apperr.Kind(err), "error", err)
		return nil, nil, err
	}

	entry := &models.ListingCacheEntry{
		ListingID:  res.ListingID,
		ListingURL: res.URL,
		Listing:    res.Listing,
		Provider:   s.provider,
		ComputedAt: s.now(),
	}
	if err := s.listings.UpsertListing(ctx, entry); err != nil {
		// The scraped listing is still returned to the caller.
		slog.Error("failed to cache listing", "listing_id", res.ListingID, "error", err)
	}

	slog.Info("listing scraped", "listing_id", res.ListingID, "strategy", res.Strategy)
	return res, entry, nil
}

func (s *ListingService) listingView(entry *models.ListingCacheEntry, stale bool, warning string) *ListingView {
	return &ListingView{
		Entry:   entry,
		Stale:   stale,
		Warning: warning,
		Search:  fingerprint.ListingSearchLink(s.baseURL, entry.Listing),
	}
}
