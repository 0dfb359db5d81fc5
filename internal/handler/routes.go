package handler

import (
	"net/http"

	"github.com/tanner-pham/Baller-sub000/internal/metrics"
)

// NewRouter mounts every API route behind CORS. The /v1 routes require the
// internal bearer token.
func NewRouter(jobs *JobHandler, consumer *ConsumerHandler, m *metrics.Metrics, token string) http.Handler {
	auth := func(h http.HandlerFunc) http.Handler {
		return BearerAuth(token, h)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/listing/fetch", auth(jobs.FetchListing))
	mux.Handle("/v1/similar/enqueue", auth(jobs.EnqueueSimilar))
	mux.Handle("/v1/jobs", auth(jobs.ListJobs))
	mux.Handle("/v1/jobs/", auth(jobs.GetJob))

	mux.HandleFunc("/api/similar-listings", consumer.GetSimilarListings)
	mux.HandleFunc("/api/listing", consumer.GetListing)
	mux.HandleFunc("/api/condition", consumer.GetCondition)

	mux.HandleFunc("/health", Health)
	mux.HandleFunc("/metrics", Metrics(m))

	return CORS(mux)
}

// NewHealthRouter serves the worker's health and metrics endpoints.
func NewHealthRouter(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", Health)
	mux.HandleFunc("/metrics", Metrics(m))
	return mux
}
