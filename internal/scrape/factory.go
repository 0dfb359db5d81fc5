package scrape

import (
	"fmt"
	"log/slog"

	"github.com/tanner-pham/Baller-sub000/internal/config"
)

// NewFetcherFromConfig builds the fetcher selected by FETCH_MODE behind a
// per-domain limiter. The returned func releases it.
func NewFetcherFromConfig(cfg *config.Config) (Fetcher, func(), error) {
	limiter := NewDomainLimiter(cfg.ScrapeRPS, cfg.ScrapeBurst)

	switch cfg.FetchMode {
	case config.FetchHTTP:
		slog.Info("using http fetcher", "timeout", cfg.FetchTimeout)
		return NewHTTPFetcher(cfg.FetchTimeout, limiter), func() {}, nil
	case config.FetchBrowser:
		f, err := NewBrowserFetcher(BrowserOptions{
			Headless:    cfg.Headless,
			Timeout:     cfg.FetchTimeout,
			SettleDelay: cfg.SettleDelay,
		}, limiter)
		if err != nil {
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		slog.Info("using browser fetcher", "headless", cfg.Headless, "timeout", cfg.FetchTimeout)
		return f, f.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown fetch mode %q", cfg.FetchMode)
}
