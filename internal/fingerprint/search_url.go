package fingerprint

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// DefaultBaseURL is the marketplace origin used when none is configured.
const DefaultBaseURL = "https://www.facebook.com"

// SearchLink is the marketplace search a listing page links to.
type SearchLink struct {
	URL      string `json:"url"`
	MinPrice *int   `json:"minPrice"`
	MaxPrice *int   `json:"maxPrice"`
}

// ListingSearchLink builds the "browse similar" search for a listing page.
// It uses a wider 0.7x/1.3x price band than the fingerprint.
func ListingSearchLink(baseURL string, listing models.NormalizedListing) SearchLink {
	query := strings.TrimSpace(models.Deref(listing.Title))
	if query == "" {
		query = fallbackQuery
	}
	link := SearchLink{}
	if cents, ok := PriceCents(models.Deref(listing.Price)); ok {
		lo, hi := priceBand(cents, 70, 130)
		link.MinPrice, link.MaxPrice = &lo, &hi
	}
	link.URL = SearchPageURL(baseURL, query, link.MinPrice, link.MaxPrice, 1)
	return link
}

// SearchPageURLs returns the URLs of result pages 1..pages for a query.
func SearchPageURLs(baseURL string, query models.SimilarSearchQuery, pages int) []string {
	urls := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		urls = append(urls, SearchPageURL(baseURL, query.QueryText, query.MinPrice, query.MaxPrice, page))
	}
	return urls
}

// SearchPageURL builds one marketplace search URL.
func SearchPageURL(baseURL, queryText string, minPrice, maxPrice *int, page int) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	params := url.Values{}
	params.Set("query", queryText)
	if minPrice != nil {
		params.Set("minPrice", strconv.Itoa(*minPrice))
	}
	if maxPrice != nil {
		params.Set("maxPrice", strconv.Itoa(*maxPrice))
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return strings.TrimRight(baseURL, "/") + "/marketplace/search/?" + params.Encode()
}
