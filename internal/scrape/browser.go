package scrape

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
)

// BrowserOptions configures the headless browser session.
type BrowserOptions struct {
	Headless    bool
	Timeout     time.Duration
	SettleDelay time.Duration
}

// BrowserFetcher renders pages in one long-lived Chrome instance, one tab per
// fetch. Close releases the browser.
type BrowserFetcher struct {
	opts    BrowserOptions
	limiter *DomainLimiter

	allocCtx     context.Context
	browserCtx   context.Context
	cancelAlloc  context.CancelFunc
	cancelBrowse context.CancelFunc
}

// NewBrowserFetcher starts the browser process. The caller must call Close.
func NewBrowserFetcher(opts BrowserOptions, limiter *DomainLimiter) (*BrowserFetcher, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(defaultUserAgent),
	)

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	f := &BrowserFetcher{opts: opts, limiter: limiter}
	f.allocCtx, f.cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	f.browserCtx, f.cancelBrowse = chromedp.NewContext(f.allocCtx)

	// An empty Run launches the browser so startup failures surface here.
	if err := chromedp.Run(f.browserCtx); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.limiter.Wait(ctx, url); err != nil {
		return "", err
	}

	tab, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tab, f.opts.Timeout)
	defer cancelTimeout()
	// Tabs derive from the browser context, so propagate the caller's cancellation by hand.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.opts.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &apperr.UpstreamTransportError{URL: url, Timeout: isTimeout(err) || tabCtx.Err() != nil, Err: err}
	}
	return html, nil
}

// Close shuts down the browser process.
func (f *BrowserFetcher) Close() {
	f.cancelBrowse()
	f.cancelAlloc()
}
