package scrape

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/extract"
	"github.com/tanner-pham/Baller-sub000/internal/fingerprint"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/ranking"
)

const (
	searchPages       = 3
	searchConcurrency = 2
)

// ListingScrape is the result of scraping one listing page.
type ListingScrape struct {
	ListingID string
	URL       string
	Listing   models.NormalizedListing
	Raw       map[string]any
	Strategy  string
}

// Executor fetches listing and search pages and turns them into records.
type Executor struct {
	fetcher Fetcher
	baseURL string
}

func NewExecutor(fetcher Fetcher, baseURL string) *Executor {
	if baseURL == "" {
		baseURL = fingerprint.DefaultBaseURL
	}
	return &Executor{fetcher: fetcher, baseURL: baseURL}
}

// ScrapeListing fetches one listing page and extracts it.
func (e *Executor) ScrapeListing(ctx context.Context, listingURL string) (*ListingScrape, error) {
	id, err := extract.ListingIDFromURL(listingURL)
	if err != nil {
		return nil, err
	}
	html, err := e.fetcher.Fetch(ctx, listingURL)
	if err != nil {
		return nil, err
	}
	res, err := extract.ParseListingHTML(html)
	if err != nil {
		var ee *apperr.ExtractionError
		if errors.As(err, &ee) {
			ee.URL = listingURL
		}
		return nil, err
	}
	return &ListingScrape{
		ListingID: id,
		URL:       listingURL,
		Listing:   res.Listing,
		Raw:       res.Raw,
		Strategy:  res.Strategy,
	}, nil
}

// ScrapeSimilar fetches the first search pages for query, at most two at a
// time, and returns the ranked comparables. A failed page is skipped; the
// scrape fails only when no page produced usable HTML.
func (e *Executor) ScrapeSimilar(ctx context.Context, query models.SimilarSearchQuery) ([]models.NormalizedComparable, error) {
	urls := fingerprint.SearchPageURLs(e.baseURL, query, searchPages)
	pages := make([][]models.SimpleListing, len(urls))

	var (
		mu      sync.Mutex
		usable  int
		lastErr error
	)
	var g errgroup.Group
	g.SetLimit(searchConcurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			html, err := e.fetcher.Fetch(ctx, u)
			if err == nil && extract.IsAuthWall(html) {
				err = &apperr.ExtractionError{URL: u, Reason: "auth wall", AuthWall: true}
			}
			if err != nil {
				slog.Warn("search page failed", "url", u, "error", err)
				mu.Lock()
				lastErr = err
				mu.Unlock()
				return nil
			}
			cards := extract.ParseSearchHTML(html, e.baseURL)
			mu.Lock()
			usable++
			pages[i] = cards
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if usable == 0 {
		if lastErr == nil {
			lastErr = &apperr.ExtractionError{Reason: "no search pages fetched"}
		}
		return nil, lastErr
	}

	var candidates []models.NormalizedComparable
	for _, cards := range pages {
		for _, c := range cards {
			candidates = append(candidates, ToComparable(c))
		}
	}
	return ranking.Rank(candidates, query), nil
}

// ToComparable converts a search card, parsing its display price.
// Unparseable prices become 0.
func ToComparable(c models.SimpleListing) models.NormalizedComparable {
	price, _ := fingerprint.ParsePrice(c.Price)
	return models.NormalizedComparable{
		Title:    c.Title,
		Price:    price,
		Location: c.Location,
		Image:    c.Image,
		Link:     c.Link,
	}
}
