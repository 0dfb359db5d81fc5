package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/fingerprint"
	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// MockFetcher serves canned pages keyed by a substring of the URL.
type MockFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	errs     map[string]error
	calls    []string
	inFlight int
	maxSeen  int
	delay    time.Duration
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	time.Sleep(m.delay)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	for key, err := range m.errs {
		if strings.Contains(url, key) {
			return "", err
		}
	}
	for key, page := range m.pages {
		if strings.Contains(url, key) {
			return page, nil
		}
	}
	return "<html><body></body></html>", nil
}

func searchHTML(items ...[3]string) string {
	var edges []string
	for _, it := range items {
		edges = append(edges, fmt.Sprintf(`{"node":{"listing":{"id":%q,"marketplace_listing_title":%q,"listing_price":{"formatted_amount":%q},"primary_listing_photo":{"image":{"uri":"https://cdn.test/%s.jpg"}}}}}`, it[0], it[1], it[2], it[0]))
	}
	return `<html><body><script>{"marketplace_search":{"feed_units":{"edges":[` + strings.Join(edges, ",") + `]}}}</script></body></html>`
}

func macbookQuery() models.SimilarSearchQuery {
	return fingerprint.Build(models.NormalizedListing{
		Title: models.StringPtr("Macbook Air M2 2022"),
		Price: models.StringPtr("$550"),
	})
}

func TestScrapeSimilar_AggregatesAndRanks(t *testing.T) {
	f := &MockFetcher{
		pages: map[string]string{
			"page=2": searchHTML([3]string{"2", "Macbook Air 2022", "$500"}, [3]string{"1", "Macbook Air", "$550"}),
			"page=3": searchHTML([3]string{"3", "Office chair", "$40"}),
		},
		errs: map[string]error{},
	}
	// Page 1 has no page param; it falls through to the default empty page.
	e := NewExecutor(f, "https://example.test")

	got, err := e.ScrapeSimilar(context.Background(), macbookQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.calls) != 3 {
		t.Errorf("expected 3 page fetches, got %d", len(f.calls))
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 comparables, got %d", len(got))
	}
	if got[0].Link != "https://example.test/marketplace/item/2/" {
		t.Errorf("expected best match first, got %s", got[0].Link)
	}
	if got[2].Title != "Office chair" {
		t.Errorf("expected weakest match last, got %s", got[2].Title)
	}
	if got[0].Price != 500 {
		t.Errorf("expected parsed price 500, got %v", got[0].Price)
	}
}

func TestScrapeSimilar_BoundedConcurrency(t *testing.T) {
	f := &MockFetcher{pages: map[string]string{}, errs: map[string]error{}, delay: 20 * time.Millisecond}
	e := NewExecutor(f, "")

	if _, err := e.ScrapeSimilar(context.Background(), macbookQuery()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.maxSeen > searchConcurrency {
		t.Errorf("expected at most %d concurrent fetches, saw %d", searchConcurrency, f.maxSeen)
	}
}

func TestScrapeSimilar_PageFailureDoesNotAbort(t *testing.T) {
	f := &MockFetcher{
		pages: map[string]string{"page=3": searchHTML([3]string{"9", "Macbook Air", "$520"})},
		errs: map[string]error{
			"page=2": &apperr.UpstreamTransportError{URL: "p2", Timeout: true},
		},
	}
	e := NewExecutor(f, "")

	got, err := e.ScrapeSimilar(context.Background(), macbookQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 comparable, got %d", len(got))
	}
}

func TestScrapeSimilar_AllPagesFail(t *testing.T) {
	wall := `<html><body><form id="login_form"></form></body></html>`
	f := &MockFetcher{
		pages: map[string]string{"marketplace": wall},
		errs:  map[string]error{},
	}
	e := NewExecutor(f, "")

	_, err := e.ScrapeSimilar(context.Background(), macbookQuery())
	var ee *apperr.ExtractionError
	if !errors.As(err, &ee) || !ee.AuthWall {
		t.Fatalf("expected auth-wall error, got %v", err)
	}
	if !apperr.IsRetryable(err) {
		t.Errorf("expected auth-wall failure to be retryable at the job level")
	}
}

func TestScrapeListing(t *testing.T) {
	page := `<html><body><script>{"target":{"id":"77","marketplace_listing_title":"Bike","listing_price":{"formatted_amount":"$120"}}}</script></body></html>`
	f := &MockFetcher{pages: map[string]string{"/item/77": page}, errs: map[string]error{}}
	e := NewExecutor(f, "")

	res, err := e.ScrapeListing(context.Background(), "https://www.facebook.com/marketplace/item/77/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ListingID != "77" || models.Deref(res.Listing.Title) != "Bike" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestScrapeListing_InvalidURL(t *testing.T) {
	e := NewExecutor(&MockFetcher{}, "")
	_, err := e.ScrapeListing(context.Background(), "https://www.facebook.com/groups/1")
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestScrapeListing_ExtractionFailureCarriesURL(t *testing.T) {
	f := &MockFetcher{pages: map[string]string{}, errs: map[string]error{}}
	e := NewExecutor(f, "")

	url := "https://www.facebook.com/marketplace/item/5/"
	_, err := e.ScrapeListing(context.Background(), url)
	var ee *apperr.ExtractionError
	if !errors.As(err, &ee) || ee.URL != url {
		t.Errorf("expected extraction error for %s, got %v", url, err)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("User-Agent") == "" {
				t.Errorf("expected a user agent header")
			}
			fmt.Fprint(w, "<html>ok</html>")
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		default:
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(50*time.Millisecond, NewDomainLimiter(100, 10))

	body, err := f.Fetch(context.Background(), srv.URL+"/ok")
	if err != nil || body != "<html>ok</html>" {
		t.Errorf("expected body, got %q (%v)", body, err)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/denied")
	var ue *apperr.UpstreamTransportError
	if !errors.As(err, &ue) || ue.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 upstream error, got %v", err)
	}

	_, err = f.Fetch(context.Background(), srv.URL+"/slow")
	if !errors.As(err, &ue) || !ue.Timeout {
		t.Errorf("expected timeout upstream error, got %v", err)
	}
}

func TestDomainLimiter_PerHost(t *testing.T) {
	l := NewDomainLimiter(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "https://a.test/1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Wait(ctx, "https://b.test/1"); err != nil {
		t.Errorf("expected a separate bucket per host, got %v", err)
	}
	if err := l.Wait(ctx, "https://a.test/2"); err == nil {
		t.Errorf("expected second request to a.test to exceed the deadline")
	}
}
