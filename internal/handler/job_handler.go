package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/tanner-pham/Baller-sub000/internal/metrics"
	"github.com/tanner-pham/Baller-sub000/internal/models"
	"github.com/tanner-pham/Baller-sub000/internal/scrape"
)

// JobService is what the internal routes need from the enqueue side.
type JobService interface {
	Enqueue(ctx context.Context, req *models.EnqueueSimilarRequest) (*models.EnqueueResult, error)
	GetJob(ctx context.Context, jobID string) (*models.JobStatusEntry, error)
	ListJobs(ctx context.Context, status models.JobStatus) ([]*models.JobStatusEntry, error)
}

// ListingFetcher scrapes a single listing on demand.
type ListingFetcher interface {
	FetchListing(ctx context.Context, listingURL string) (*scrape.ListingScrape, error)
}

// JobHandler handles the bearer-authenticated scraper routes
type JobHandler struct {
	jobs     JobService
	listings ListingFetcher
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobService, listings ListingFetcher) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		listings: listings,
	}
}

type fetchListingRequest struct {
	ListingURL string `json:"listingUrl"`
}

type fetchListingResponse struct {
	Success   bool                     `json:"success"`
	ListingID string                   `json:"listingId"`
	Listing   models.NormalizedListing `json:"listing"`
	Raw       map[string]any           `json:"raw"`
	Strategy  string                   `json:"strategy"`
}

// FetchListing handles POST /v1/listing/fetch
func (h *JobHandler) FetchListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req fetchListingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ListingURL == "" {
		badRequest(w, "listingUrl is required")
		return
	}

	res, err := h.listings.FetchListing(r.Context(), req.ListingURL)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, fetchListingResponse{
		Success:   true,
		ListingID: res.ListingID,
		Listing:   res.Listing,
		Raw:       res.Raw,
		Strategy:  res.Strategy,
	})
}

type enqueueResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Created bool   `json:"created"`
}

// EnqueueSimilar handles POST /v1/similar/enqueue
func (h *JobHandler) EnqueueSimilar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req models.EnqueueSimilarRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.jobs.Enqueue(r.Context(), &req)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, enqueueResponse{Success: true, JobID: res.JobID, Created: res.Created})
}

type jobResponse struct {
	Success bool                   `json:"success"`
	Job     *models.JobStatusEntry `json:"job"`
}

// GetJob handles GET /v1/jobs/{jobId}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if jobID == "" || jobID == r.URL.Path || strings.Contains(jobID, "/") {
		badRequest(w, "job id is required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Success: true, Job: job})
}

type jobListResponse struct {
	Success bool                     `json:"success"`
	Jobs    []*models.JobStatusEntry `json:"jobs"`
}

// ListJobs handles GET /v1/jobs?status=
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	statusStr := r.URL.Query().Get("status")
	if statusStr == "" {
		badRequest(w, "status query parameter is required")
		return
	}
	status, ok := models.ParseJobStatus(statusStr)
	if !ok {
		badRequest(w, "invalid status")
		return
	}

	jobs, err := h.jobs.ListJobs(r.Context(), status)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*models.JobStatusEntry{}
	}
	writeJSON(w, http.StatusOK, jobListResponse{Success: true, Jobs: jobs})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

// Metrics handles GET /metrics
func Metrics(m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		writeJSON(w, http.StatusOK, m.GetSnapshot())
	}
}
