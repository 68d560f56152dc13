// Package rod implements sitemd.Fetcher with a headless Chrome browser so
// pages that build their content with JavaScript are converted as rendered.
package rod

import (
	"context"

	"github.com/fwojciec/sitemd"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Fetcher implements sitemd.Fetcher at compile time.
var _ sitemd.Fetcher = (*Fetcher)(nil)

// Fetcher returns the DOM of a page after its load event has fired.
// Fetcher is safe for concurrent use; each Fetch opens its own tab.
type Fetcher struct {
	pool *browserPool
}

// Option configures a Fetcher.
type Option func(*options)

type options struct {
	recycleAfter int64
}

// WithRecycleAfter replaces the browser after n rendered pages.
func WithRecycleAfter(n int64) Option {
	return func(o *options) { o.recycleAfter = n }
}

// NewFetcher launches a headless browser. Close must be called when the
// Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	pool, err := newBrowserPool(o.recycleAfter)
	if err != nil {
		return nil, err
	}
	return &Fetcher{pool: pool}, nil
}

// Fetch navigates a new tab to rawURL and returns the rendered HTML.
// Navigation and rendering failures are reported as *sitemd.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	browser, err := f.pool.acquire()
	if err != nil {
		return "", &sitemd.FetchError{URL: rawURL, Err: err}
	}
	defer f.pool.done()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", &sitemd.FetchError{URL: rawURL, Err: err}
	}
	defer page.Close()

	page = page.Context(ctx)

	var status int
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = e.Response.Status
			return true
		}
		return false
	})

	if err := page.Navigate(rawURL); err != nil {
		return "", &sitemd.FetchError{URL: rawURL, Err: err}
	}
	wait()
	if status >= 400 {
		return "", &sitemd.FetchError{URL: rawURL, StatusCode: status}
	}

	if err := page.WaitLoad(); err != nil {
		return "", &sitemd.FetchError{URL: rawURL, Err: err}
	}

	html, err := page.HTML()
	if err != nil {
		return "", &sitemd.FetchError{URL: rawURL, Err: err}
	}
	return html, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (f *Fetcher) Close() error {
	return f.pool.close()
}

// LauncherPID returns the process ID of the browser launcher.
func (f *Fetcher) LauncherPID() int {
	return f.pool.pid()
}
