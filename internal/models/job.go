package models

import "time"

// JobStatus represents the state of a similar-listings job
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ParseJobStatus converts a raw string to a JobStatus.
func ParseJobStatus(s string) (JobStatus, bool) {
	st := JobStatus(s)
	switch st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, true
	}
	return "", false
}

// IsTerminal reports whether a job in this status may be enqueued again.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobStatusEntry is the polled projection of one (listingId, queryHash) job.
type JobStatusEntry struct {
	ListingID      string     `json:"listingId"`
	QueryHash      string     `json:"queryHash"`
	JobID          string     `json:"jobId"`
	Status         JobStatus  `json:"status"`
	AttemptCount   int        `json:"attemptCount"`
	ErrorMessage   *string    `json:"errorMessage"`
	LastEnqueuedAt time.Time  `json:"lastEnqueuedAt"`
	CompletedAt    *time.Time `json:"completedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// SimilarJobPayload is what the queue carries for one similar-listings scrape.
type SimilarJobPayload struct {
	ListingID  string             `json:"listingId"`
	ListingURL string             `json:"listingUrl"`
	Query      SimilarSearchQuery `json:"query"`
}

// EnqueueSimilarRequest is the body of POST /v1/similar/enqueue
type EnqueueSimilarRequest struct {
	ListingID  string   `json:"listingId"`
	ListingURL string   `json:"listingUrl"`
	QueryHash  string   `json:"queryHash"`
	QueryText  string   `json:"queryText"`
	Keywords   []string `json:"keywords"`
	Location   *string  `json:"location,omitempty"`
	MinPrice   *int     `json:"minPrice,omitempty"`
	MaxPrice   *int     `json:"maxPrice,omitempty"`
}

// Query rebuilds the SimilarSearchQuery carried by the request.
func (r *EnqueueSimilarRequest) Query() SimilarSearchQuery {
	return SimilarSearchQuery{
		QueryText: r.QueryText,
		Keywords:  r.Keywords,
		Location:  r.Location,
		MinPrice:  r.MinPrice,
		MaxPrice:  r.MaxPrice,
		Hash:      r.QueryHash,
	}
}

// EnqueueResult reports the deterministic job id and whether a new job was created.
type EnqueueResult struct {
	JobID   string `json:"jobId"`
	Created bool   `json:"created"`
}
