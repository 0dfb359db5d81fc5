// Package apperr defines the error kinds shared by the scrape pipeline,
// the worker and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError is returned for malformed request payloads. It is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ExtractionError is returned when no extraction strategy produced a usable
// record, or when the page turned out to be an auth wall.
type ExtractionError struct {
	URL      string
	Reason   string
	AuthWall bool
}

func (e *ExtractionError) Error() string {
	if e.URL == "" {
		return "extraction failed: " + e.Reason
	}
	return fmt.Sprintf("extraction failed for %s: %s", e.URL, e.Reason)
}

// UpstreamTransportError wraps timeouts, non-2xx responses and network failures.
type UpstreamTransportError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *UpstreamTransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("upstream timeout for %s: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
	default:
		return fmt.Sprintf("upstream request to %s failed: %v", e.URL, e.Err)
	}
}

func (e *UpstreamTransportError) Unwrap() error {
	return e.Err
}

// CacheIOError wraps a failed read or write against one of the stores.
type CacheIOError struct {
	Op  string
	Err error
}

func (e *CacheIOError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheIOError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failure should go back through the queue's
// retry path. Only validation failures are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	return !errors.As(err, &ve)
}

// Kind names the taxonomy bucket of err for logs and consumer-facing messages.
func Kind(err error) string {
	var (
		ve *ValidationError
		ee *ExtractionError
		ue *UpstreamTransportError
		ce *CacheIOError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return "validation_error"
	case errors.As(err, &ee):
		return "extraction_error"
	case errors.As(err, &ue):
		return "upstream_error"
	case errors.As(err, &ce):
		return "cache_error"
	default:
		return "internal_error"
	}
}
