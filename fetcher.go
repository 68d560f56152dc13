package sitemd

import (
	"context"
	"fmt"
	"net/http"
)

// Fetcher retrieves page HTML from URLs.
// Implementations may use browser automation to handle JavaScript-rendered content.
type Fetcher interface {
	// Fetch retrieves the URL and returns the page body as text.
	// Failures are reported as *FetchError.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases resources.
	// Must be called when the Fetcher is no longer needed.
	Close() error
}

// AssetFetcher retrieves binary resources such as images.
type AssetFetcher interface {
	FetchBytes(ctx context.Context, url string) (*Image, error)
}

// FetchError reports a failed fetch: either a non-2xx response or a
// transport failure (DNS, TLS, timeout, connection reset).
type FetchError struct {
	URL        string
	StatusCode int // zero for transport failures
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the request may succeed.
func (e *FetchError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
