package models

import "time"

// ListingCacheTTL is shared by the listing and condition caches.
const ListingCacheTTL = 24 * time.Hour

// ListingCacheEntry is one row of the Listing Cache.
type ListingCacheEntry struct {
	ListingID  string            `json:"listingId"`
	ListingURL string            `json:"listingUrl"`
	Listing    NormalizedListing `json:"listing"`
	// InlineSimilar is filled only by providers that bundle comparables with the listing.
	InlineSimilar []NormalizedComparable `json:"inlineSimilar,omitempty"`
	Provider      string                 `json:"provider"`
	ComputedAt    time.Time              `json:"computedAt"`
}

// IsFresh reports whether the entry is younger than ttl at now.
func (e *ListingCacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return isFresh(e.ComputedAt, now, ttl)
}

// ConditionCacheEntry is one row of the Condition Cache.
type ConditionCacheEntry struct {
	ListingID  string              `json:"listingId"`
	Assessment ConditionAssessment `json:"assessment"`
	ComputedAt time.Time           `json:"computedAt"`
}

// IsFresh reports whether the entry is younger than ttl at now.
func (e *ConditionCacheEntry) IsFresh(now time.Time, ttl time.Duration) bool {
	return isFresh(e.ComputedAt, now, ttl)
}

// SimilarListingsCacheEntry is one row of the Similar-Listings Cache,
// keyed by (ListingID, QueryHash).
type SimilarListingsCacheEntry struct {
	ListingID  string                 `json:"listingId"`
	QueryHash  string                 `json:"queryHash"`
	Listings   []NormalizedComparable `json:"listings"`
	ComputedAt time.Time              `json:"computedAt"`
	ExpiresAt  time.Time              `json:"expiresAt"`
}

// NewSimilarListingsCacheEntry stamps a fresh entry computed at now.
func NewSimilarListingsCacheEntry(listingID, queryHash string, listings []NormalizedComparable, now time.Time, ttl time.Duration) *SimilarListingsCacheEntry {
	if listings == nil {
		listings = []NormalizedComparable{}
	}
	return &SimilarListingsCacheEntry{
		ListingID:  listingID,
		QueryHash:  queryHash,
		Listings:   listings,
		ComputedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
}

// IsFresh reports whether now is before the row's own expiry.
func (e *SimilarListingsCacheEntry) IsFresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

func isFresh(computedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(computedAt) < ttl
}
