// Package scrape fetches marketplace pages and drives them through the
// extraction and ranking engines.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
)

const (
	maxBodyBytes     = 10 << 20
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches pages with a plain HTTP GET. It does not run scripts, so
// it only sees server-rendered markup.
type HTTPFetcher struct {
	client  *http.Client
	limiter *DomainLimiter
	timeout time.Duration
}

// NewHTTPFetcher builds a fetcher with a per-request timeout. limiter may be nil.
func NewHTTPFetcher(timeout time.Duration, limiter *DomainLimiter) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{},
		limiter: limiter,
		timeout: timeout,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return "", err
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperr.Validationf("invalid url %q: %v", url, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &apperr.UpstreamTransportError{URL: url, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &apperr.UpstreamTransportError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &apperr.UpstreamTransportError{URL: url, Timeout: isTimeout(err), Err: fmt.Errorf("read body: %w", err)}
	}
	return string(body), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
