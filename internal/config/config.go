// Package config loads and validates environment variables at startup.
// Fail-fast: a missing required variable or a malformed value is an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Listing providers.
const (
	ProviderInternal = "internal"
	ProviderExternal = "external"
)

// Fetch modes.
const (
	FetchBrowser = "browser"
	FetchHTTP    = "http"
)

// Config holds all runtime configuration for the api, worker and CLI.
type Config struct {
	InternalAPIToken string
	RedisURL         string
	DatabaseURL      string
	Port             string
	WorkerPort       string

	WorkerConcurrency     int
	JobMaxAttempts        int
	JobBackoffBase        time.Duration
	JobLease              time.Duration
	SimilarListingsTTL    time.Duration
	EnqueueLimitPerMinute int

	LogLevel string

	ListingProvider    string
	FetchMode          string
	Headless           bool
	FetchTimeout       time.Duration
	SettleDelay        time.Duration
	ScrapeRPS          float64
	ScrapeBurst        int
	MarketplaceBaseURL string
	ConditionScorerURL string
	ReaperSchedule     string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	return load(os.Getenv)
}

// LoadScraper reads only the settings the scrape executor needs, so the CLI
// runs without queue or token configuration.
func LoadScraper() (*Config, error) {
	getenv := func(key string) string {
		switch key {
		case "INTERNAL_API_TOKEN":
			if v := os.Getenv(key); v != "" {
				return v
			}
			return "unused"
		case "REDIS_URL":
			if v := os.Getenv(key); v != "" {
				return v
			}
			return "redis://localhost:6379/0"
		}
		return os.Getenv(key)
	}
	return load(getenv)
}

func load(getenv func(string) string) (*Config, error) {
	e := &envReader{getenv: getenv}

	cfg := &Config{
		InternalAPIToken: e.required("INTERNAL_API_TOKEN"),
		RedisURL:         e.required("REDIS_URL"),
		DatabaseURL:      e.str("DATABASE_URL", "marketplace.db"),
		Port:             e.str("PORT", "8080"),
		WorkerPort:       e.str("WORKER_PORT", "8081"),

		WorkerConcurrency:     e.intMin("WORKER_CONCURRENCY", 2, 1),
		JobMaxAttempts:        e.intMin("JOB_MAX_ATTEMPTS", 3, 1),
		JobBackoffBase:        time.Duration(e.intMin("JOB_BACKOFF_BASE_MS", 30000, 1)) * time.Millisecond,
		JobLease:              time.Duration(e.intMin("JOB_LEASE_SECONDS", 300, 1)) * time.Second,
		SimilarListingsTTL:    time.Duration(e.intMin("SIMILAR_LISTINGS_CACHE_TTL_HOURS", 6, 1)) * time.Hour,
		EnqueueLimitPerMinute: e.intMin("ENQUEUE_LIMIT_PER_MINUTE", 6, 1),

		LogLevel: strings.ToLower(e.str("LOG_LEVEL", "info")),

		ListingProvider:    strings.ToLower(e.str("LISTING_PROVIDER", ProviderInternal)),
		FetchMode:          strings.ToLower(e.str("FETCH_MODE", FetchBrowser)),
		Headless:           e.boolean("HEADLESS", true),
		FetchTimeout:       time.Duration(e.intMin("FETCH_TIMEOUT_MS", 30000, 1)) * time.Millisecond,
		SettleDelay:        time.Duration(e.intMin("SETTLE_DELAY_MS", 1500, 0)) * time.Millisecond,
		ScrapeRPS:          e.float("SCRAPE_RPS", 1),
		ScrapeBurst:        e.intMin("SCRAPE_BURST", 2, 1),
		MarketplaceBaseURL: strings.TrimRight(e.str("MARKETPLACE_BASE_URL", "https://www.facebook.com"), "/"),
		ConditionScorerURL: e.str("CONDITION_SCORER_URL", ""),
		ReaperSchedule:     e.str("REAPER_SCHEDULE", "@every 1m"),
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		e.fail("LOG_LEVEL must be one of debug, info, warn, error")
	}
	if cfg.ListingProvider != ProviderInternal && cfg.ListingProvider != ProviderExternal {
		e.fail("LISTING_PROVIDER must be internal or external")
	}
	if cfg.FetchMode != FetchBrowser && cfg.FetchMode != FetchHTTP {
		e.fail("FETCH_MODE must be browser or http")
	}

	if e.err != nil {
		return nil, e.err
	}
	return cfg, nil
}

// envReader records the first problem it sees so Load can report it.
type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) fail(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf(format, args...)
	}
}

func (e *envReader) str(key, def string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return def
}

func (e *envReader) required(key string) string {
	v := strings.TrimSpace(e.getenv(key))
	if v == "" {
		e.fail("%s is required", key)
	}
	return v
}

func (e *envReader) intMin(key string, def, lo int) int {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		e.fail("%s must be an integer, got %q", key, raw)
		return def
	}
	if n < lo {
		e.fail("%s must be at least %d, got %d", key, lo, n)
		return def
	}
	return n
}

func (e *envReader) float(key string, def float64) float64 {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		e.fail("%s must be a non-negative number, got %q", key, raw)
		return def
	}
	return f
}

func (e *envReader) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(e.getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.fail("%s must be a boolean, got %q", key, raw)
		return def
	}
	return b
}
