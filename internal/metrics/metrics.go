package metrics

import (
	"sync"
)

// Metrics tracks pipeline counters for the /metrics endpoint
type Metrics struct {
	mu sync.RWMutex

	jobsEnqueued     int64
	jobsDeduplicated int64
	jobsCompleted    int64
	jobsFailed       int64
	jobsRetried      int64
	cacheHits        int64
	cacheMisses      int64
	staleServed      int64
	scrapesFailed    int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) add(counter *int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
}

// IncrementJobsEnqueued counts an enqueue that created a job
func (m *Metrics) IncrementJobsEnqueued() { m.add(&m.jobsEnqueued) }

// IncrementJobsDeduplicated counts an enqueue absorbed by an existing job
func (m *Metrics) IncrementJobsDeduplicated() { m.add(&m.jobsDeduplicated) }

// IncrementJobsCompleted counts a job that wrote its results
func (m *Metrics) IncrementJobsCompleted() { m.add(&m.jobsCompleted) }

// IncrementJobsFailed counts a job buried after its last attempt
func (m *Metrics) IncrementJobsFailed() { m.add(&m.jobsFailed) }

// IncrementJobsRetried counts a failed attempt scheduled for retry
func (m *Metrics) IncrementJobsRetried() { m.add(&m.jobsRetried) }

func (m *Metrics) IncrementCacheHits()     { m.add(&m.cacheHits) }
func (m *Metrics) IncrementCacheMisses()   { m.add(&m.cacheMisses) }
func (m *Metrics) IncrementStaleServed()   { m.add(&m.staleServed) }
func (m *Metrics) IncrementScrapesFailed() { m.add(&m.scrapesFailed) }

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"jobs_enqueued":     m.jobsEnqueued,
		"jobs_deduplicated": m.jobsDeduplicated,
		"jobs_completed":    m.jobsCompleted,
		"jobs_failed":       m.jobsFailed,
		"jobs_retried":      m.jobsRetried,
		"cache_hits":        m.cacheHits,
		"cache_misses":      m.cacheMisses,
		"stale_served":      m.staleServed,
		"scrapes_failed":    m.scrapesFailed,
	}
}
