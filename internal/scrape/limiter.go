package scrape

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
)

// DomainLimiter paces outbound requests with one token bucket per host.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewDomainLimiter returns a limiter allowing rps requests per second per host.
// A non-positive rps disables pacing.
func NewDomainLimiter(rps float64, burst int) *DomainLimiter {
	if burst < 1 {
		burst = 1
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

// Wait blocks until the host of rawURL may be contacted again.
func (d *DomainLimiter) Wait(ctx context.Context, rawURL string) error {
	if d == nil || d.rps <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return apperr.Validationf("invalid url %q", rawURL)
	}
	host := strings.ToLower(u.Hostname())

	d.mu.Lock()
	limiter, ok := d.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(d.rps), d.burst)
		d.limiters[host] = limiter
	}
	d.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return &apperr.UpstreamTransportError{URL: rawURL, Timeout: true, Err: err}
	}
	return nil
}
