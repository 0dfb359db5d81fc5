package metrics

import (
	"sync"
	"testing"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	increments := map[string]func(){
		"jobs_enqueued":     m.IncrementJobsEnqueued,
		"jobs_deduplicated": m.IncrementJobsDeduplicated,
		"jobs_completed":    m.IncrementJobsCompleted,
		"jobs_failed":       m.IncrementJobsFailed,
		"jobs_retried":      m.IncrementJobsRetried,
		"cache_hits":        m.IncrementCacheHits,
		"cache_misses":      m.IncrementCacheMisses,
		"stale_served":      m.IncrementStaleServed,
		"scrapes_failed":    m.IncrementScrapesFailed,
	}

	for key, inc := range increments {
		inc()
		snapshot := m.GetSnapshot()
		if snapshot[key] != 1 {
			t.Errorf("expected %s 1, got %d", key, snapshot[key])
		}
	}

	if len(m.GetSnapshot()) != len(increments) {
		t.Errorf("expected %d keys in snapshot, got %d", len(increments), len(m.GetSnapshot()))
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementJobsEnqueued()
			m.IncrementJobsCompleted()
			m.IncrementCacheHits()
		}()
	}

	wg.Wait()

	snapshot := m.GetSnapshot()
	if snapshot["jobs_enqueued"] != 100 {
		t.Errorf("expected jobs_enqueued 100, got %d", snapshot["jobs_enqueued"])
	}
	if snapshot["jobs_completed"] != 100 {
		t.Errorf("expected jobs_completed 100, got %d", snapshot["jobs_completed"])
	}
	if snapshot["cache_hits"] != 100 {
		t.Errorf("expected cache_hits 100, got %d", snapshot["cache_hits"])
	}
}
