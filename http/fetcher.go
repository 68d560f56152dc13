// Package http provides an HTTP-based implementation of sitemd.Fetcher
// for fetching pages and images from static sites.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fwojciec/sitemd"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultMaxBodySize caps how much of a response body is read.
const DefaultMaxBodySize = 20 << 20

// Ensure Fetcher implements sitemd.Fetcher and sitemd.AssetFetcher at compile time.
var (
	_ sitemd.Fetcher      = (*Fetcher)(nil)
	_ sitemd.AssetFetcher = (*Fetcher)(nil)
)

// Fetcher retrieves content from URLs using HTTP GET requests.
// Redirects are followed transparently. It does not execute JavaScript.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize limits how many bytes of a response are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		userAgent:   "sitemd/1.0 (+https://github.com/fwojciec/sitemd)",
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch retrieves the page at url and returns the body as text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, _, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes retrieves the resource at url as raw bytes.
func (f *Fetcher) FetchBytes(ctx context.Context, url string) (*sitemd.Image, error) {
	body, contentType, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	return &sitemd.Image{
		URL:         url,
		ContentType: contentType,
		Data:        body,
	}, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &sitemd.FetchError{URL: url, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", &sitemd.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &sitemd.FetchError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, "", &sitemd.FetchError{URL: url, Err: err}
	}

	return body, resp.Header.Get("Content-Type"), nil
}

// Close releases resources. For HTTP fetcher this is a no-op since
// http.Client doesn't require explicit cleanup.
func (f *Fetcher) Close() error {
	return nil
}
