package service

import (
	"sync"
	"time"
)

// EnqueueThrottle caps how often the same job may be (re)submitted within a
// fixed window.
type EnqueueThrottle struct {
	mu sync.Mutex

	maxPerWindow int
	window       time.Duration
	windows      map[string]*submissionWindow
	now          func() time.Time
}

type submissionWindow struct {
	count     int
	windowEnd time.Time
}

// NewEnqueueThrottle allows maxPerMinute submissions per key per minute
func NewEnqueueThrottle(maxPerMinute int) *EnqueueThrottle {
	return &EnqueueThrottle{
		maxPerWindow: maxPerMinute,
		window:       time.Minute,
		windows:      make(map[string]*submissionWindow),
		now:          time.Now,
	}
}

// Allow records a submission for key, or returns ErrEnqueueThrottled when
// the key's window is already full
func (t *EnqueueThrottle) Allow(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	window, exists := t.windows[key]

	if !exists || now.After(window.windowEnd) {
		t.prune(now)
		t.windows[key] = &submissionWindow{
			count:     1,
			windowEnd: now.Add(t.window),
		}
		return nil
	}

	if window.count >= t.maxPerWindow {
		return ErrEnqueueThrottled
	}

	window.count++
	return nil
}

// prune drops expired windows so the map does not grow with every job id.
func (t *EnqueueThrottle) prune(now time.Time) {
	for key, w := range t.windows {
		if now.After(w.windowEnd) {
			delete(t.windows, key)
		}
	}
}
