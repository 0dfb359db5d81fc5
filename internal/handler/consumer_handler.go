package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/service"
)

// SimilarFinder resolves similar-listings requests.
type SimilarFinder interface {
	GetSimilarListings(ctx context.Context, listingID string) (*service.SimilarResult, error)
}

// ListingReader serves cached listings and condition assessments.
type ListingReader interface {
	GetListing(ctx context.Context, listingURL string) (*service.ListingView, error)
	GetCondition(ctx context.Context, listingID string) (*service.ConditionView, error)
}

// ConsumerHandler handles the public /api routes. Errors are reported by
// kind only.
type ConsumerHandler struct {
	similar  SimilarFinder
	listings ListingReader
}

func NewConsumerHandler(similar SimilarFinder, listings ListingReader) *ConsumerHandler {
	return &ConsumerHandler{similar: similar, listings: listings}
}

type similarResponse struct {
	Success bool `json:"success"`
	*service.SimilarResult
}

// GetSimilarListings handles GET /api/similar-listings?listingId=
func (h *ConsumerHandler) GetSimilarListings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	res, err := h.similar.GetSimilarListings(r.Context(), r.URL.Query().Get("listingId"))
	if err != nil {
		writeConsumerError(w, err)
		return
	}

	status := http.StatusOK
	if res.Status == service.SimilarPending {
		seconds := (res.RetryAfterMs + 999) / 1000
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		status = http.StatusAccepted
	}
	writeJSON(w, status, similarResponse{Success: true, SimilarResult: res})
}

type listingResponse struct {
	Success              bool                     `json:"success"`
	Status               string                   `json:"status"`
	ListingID            string                   `json:"listingId"`
	ListingURL           string                   `json:"listingUrl"`
	Listing              models.NormalizedListing `json:"listing"`
	ComputedAt           time.Time                `json:"computedAt"`
	MarketplaceSearchURL string                   `json:"marketplaceSearchUrl"`
	SearchMinPrice       *int                     `json:"searchMinPrice"`
	SearchMaxPrice       *int                     `json:"searchMaxPrice"`
	Warning              string                   `json:"warning,omitempty"`
}

// GetListing handles GET /api/listing?url=
func (h *ConsumerHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	view, err := h.listings.GetListing(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeConsumerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listingResponse{
		Success:              true,
		Status:               freshness(view.Stale),
		ListingID:            view.Entry.ListingID,
		ListingURL:           view.Entry.ListingURL,
		Listing:              view.Entry.Listing,
		ComputedAt:           view.Entry.ComputedAt,
		MarketplaceSearchURL: view.Search.URL,
		SearchMinPrice:       view.Search.MinPrice,
		SearchMaxPrice:       view.Search.MaxPrice,
		Warning:              view.Warning,
	})
}

type conditionResponse struct {
	Success    bool                       `json:"success"`
	Status     string                     `json:"status"`
	ListingID  string                     `json:"listingId"`
	Assessment models.ConditionAssessment `json:"assessment"`
	ComputedAt time.Time                  `json:"computedAt"`
	Warning    string                     `json:"warning,omitempty"`
}

// GetCondition handles GET /api/condition?listingId=
func (h *ConsumerHandler) GetCondition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	view, err := h.listings.GetCondition(r.Context(), r.URL.Query().Get("listingId"))
	if err != nil {
		writeConsumerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conditionResponse{
		Success:    true,
		Status:     freshness(view.Stale),
		ListingID:  view.Entry.ListingID,
		Assessment: view.Entry.Assessment,
		ComputedAt: view.Entry.ComputedAt,
		Warning:    view.Warning,
	})
}

func freshness(stale bool) string {
	if stale {
		return string(service.SimilarStale)
	}
	return string(service.SimilarReady)
}
