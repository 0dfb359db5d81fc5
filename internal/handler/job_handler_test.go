package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/fingerprint"
	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/scrape"
	"github.com/tanner-pham/Baller-sub000/internal/service"
)

const testToken = "secret-token"

type mockJobService struct {
	jobs       map[string]*models.JobStatusEntry
	enqueueErr error
	lastReq    *models.EnqueueSimilarRequest
}

func (m *mockJobService) Enqueue(ctx context.Context, req *models.EnqueueSimilarRequest) (*models.EnqueueResult, error) {
	m.lastReq = req
	if m.enqueueErr != nil {
		return nil, m.enqueueErr
	}
	return &models.EnqueueResult{JobID: "job-" + req.ListingID, Created: true}, nil
}

func (m *mockJobService) GetJob(ctx context.Context, jobID string) (*models.JobStatusEntry, error) {
	if job, ok := m.jobs[jobID]; ok {
		return job, nil
	}
	return nil, service.ErrJobNotFound
}

func (m *mockJobService) ListJobs(ctx context.Context, status models.JobStatus) ([]*models.JobStatusEntry, error) {
	var out []*models.JobStatusEntry
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}

type mockListings struct {
	scrape    *scrape.ListingScrape
	view      *service.ListingView
	condition *service.ConditionView
	err       error
}

func (m *mockListings) FetchListing(ctx context.Context, listingURL string) (*scrape.ListingScrape, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.scrape, nil
}

func (m *mockListings) GetListing(ctx context.Context, listingURL string) (*service.ListingView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.view, nil
}

func (m *mockListings) GetCondition(ctx context.Context, listingID string) (*service.ConditionView, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.condition, nil
}

type mockSimilar struct {
	res *service.SimilarResult
	err error
}

func (m *mockSimilar) GetSimilarListings(ctx context.Context, listingID string) (*service.SimilarResult, error) {
	return m.res, m.err
}

func newTestRouter(jobs *mockJobService, listings *mockListings, similar *mockSimilar) http.Handler {
	return NewRouter(NewJobHandler(jobs, listings), NewConsumerHandler(similar, listings), metrics.NewMetrics(), testToken)
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %q", rec.Body.String())
	}
	return body
}

func TestHealth(t *testing.T) {
	h := newTestRouter(&mockJobService{}, &mockListings{}, &mockSimilar{})

	rec := doRequest(t, h, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != true || body["status"] != "ok" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestBearerAuth(t *testing.T) {
	h := newTestRouter(&mockJobService{}, &mockListings{}, &mockSimilar{})

	rec := doRequest(t, h, http.MethodPost, "/v1/similar/enqueue", `{}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs?status=pending", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/jobs?status=pending", "", true)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}
}

func TestBearerAuth_EmptyTokenRejectsAll(t *testing.T) {
	h := BearerAuth("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestRouter(&mockJobService{}, &mockListings{}, &mockSimilar{})

	rec := doRequest(t, h, http.MethodOptions, "/api/similar-listings", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS header")
	}
}

func TestFetchListing(t *testing.T) {
	listings := &mockListings{scrape: &scrape.ListingScrape{
		ListingID: "123",
		URL:       "https://www.facebook.com/marketplace/item/123/",
		Listing:   models.NormalizedListing{Title: models.StringPtr("Desk"), Images: []string{}},
		Raw:       map[string]any{"id": "123"},
		Strategy:  "generic_walk",
	}}
	h := newTestRouter(&mockJobService{}, listings, &mockSimilar{})

	rec := doRequest(t, h, http.MethodPost, "/v1/listing/fetch", `{"listingUrl":"https://www.facebook.com/marketplace/item/123/"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["success"] != true || body["raw"] == nil {
		t.Errorf("unexpected body %v", body)
	}
	listing := body["listing"].(map[string]any)
	if listing["title"] != "Desk" {
		t.Errorf("expected title Desk, got %v", listing["title"])
	}
}

func TestFetchListing_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		method string
		want   int
	}{
		{"missing url", `{}`, nil, http.MethodPost, http.StatusBadRequest},
		{"bad json", `{`, nil, http.MethodPost, http.StatusBadRequest},
		{"wrong method", "", nil, http.MethodGet, http.StatusMethodNotAllowed},
		{"extraction", `{"listingUrl":"u"}`, &apperr.ExtractionError{Reason: "auth wall", AuthWall: true}, http.MethodPost, http.StatusBadGateway},
		{"upstream", `{"listingUrl":"u"}`, &apperr.UpstreamTransportError{URL: "u", StatusCode: 500}, http.MethodPost, http.StatusBadGateway},
		{"validation", `{"listingUrl":"u"}`, apperr.Validationf("listing url has no item id"), http.MethodPost, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockJobService{}, &mockListings{err: tt.err}, &mockSimilar{})
			rec := doRequest(t, h, tt.method, "/v1/listing/fetch", tt.body, true)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if body := decode(t, rec); body["success"] != false {
				t.Errorf("expected success false, got %v", body["success"])
			}
		})
	}
}

func TestEnqueueSimilar(t *testing.T) {
	jobs := &mockJobService{}
	h := newTestRouter(jobs, &mockListings{}, &mockSimilar{})

	payload := `{"listingId":"123","listingUrl":"https://www.facebook.com/marketplace/item/123/","queryHash":"h","queryText":"desk","keywords":["desk"],"minPrice":10,"maxPrice":20}`
	rec := doRequest(t, h, http.MethodPost, "/v1/similar/enqueue", payload, true)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != true || body["jobId"] != "job-123" {
		t.Errorf("unexpected body %v", body)
	}
	if jobs.lastReq == nil || *jobs.lastReq.MaxPrice != 20 {
		t.Errorf("expected request to be decoded, got %+v", jobs.lastReq)
	}
}

func TestEnqueueSimilar_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Validationf("listingId is required"), http.StatusBadRequest},
		{"throttled", service.ErrEnqueueThrottled, http.StatusTooManyRequests},
		{"queue down", fmt.Errorf("%w: %w", service.ErrQueueUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&mockJobService{enqueueErr: tt.err}, &mockListings{}, &mockSimilar{})
			rec := doRequest(t, h, http.MethodPost, "/v1/similar/enqueue", `{"listingId":"1"}`, true)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestJobs(t *testing.T) {
	jobs := &mockJobService{jobs: map[string]*models.JobStatusEntry{
		"job-1": {ListingID: "1", QueryHash: "h", JobID: "job-1", Status: models.StatusCompleted, UpdatedAt: time.Now()},
	}}
	h := newTestRouter(jobs, &mockListings{}, &mockSimilar{})

	rec := doRequest(t, h, http.MethodGet, "/v1/jobs/job-1", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	job := decode(t, rec)["job"].(map[string]any)
	if job["status"] != "completed" {
		t.Errorf("expected completed, got %v", job["status"])
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/jobs/missing", "", true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/jobs?status=completed", "", true)
	if got := decode(t, rec)["jobs"].([]any); len(got) != 1 {
		t.Errorf("expected one completed job, got %d", len(got))
	}

	rec = doRequest(t, h, http.MethodGet, "/v1/jobs?status=pending", "", true)
	if got, ok := decode(t, rec)["jobs"].([]any); !ok || len(got) != 0 {
		t.Errorf("expected an empty list, got %v", got)
	}

	for _, target := range []string{"/v1/jobs", "/v1/jobs?status=RUNNING"} {
		rec = doRequest(t, h, http.MethodGet, target, "", true)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.NewMetrics()
	m.IncrementCacheHits()
	h := NewHealthRouter(m)

	rec := doRequest(t, h, http.MethodGet, "/metrics", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decode(t, rec)["cache_hits"]; got != float64(1) {
		t.Errorf("expected cache_hits 1, got %v", got)
	}
}

func TestListingSearchLinkShape(t *testing.T) {
	link := fingerprint.ListingSearchLink("", models.NormalizedListing{Title: models.StringPtr("Desk"), Price: models.StringPtr("$100")})
	listings := &mockListings{view: &service.ListingView{
		Entry:  &models.ListingCacheEntry{ListingID: "1", Listing: models.NormalizedListing{Title: models.StringPtr("Desk")}},
		Search: link,
	}}
	h := newTestRouter(&mockJobService{}, listings, &mockSimilar{})

	rec := doRequest(t, h, http.MethodGet, "/api/listing?url=x", "", false)
	body := decode(t, rec)
	if body["marketplaceSearchUrl"] != link.URL || body["searchMinPrice"] != float64(70) || body["searchMaxPrice"] != float64(130) {
		t.Errorf("unexpected search fields %v", body)
	}
}
