package sitemd

import (
	"context"
	"net/url"
)

// MaxCrawlDepth is the largest crawl depth a job may request.
const MaxCrawlDepth = 5

// CrawlJob describes one website crawl. It is passed by value and never
// modified once created.
type CrawlJob struct {
	StartURL      string
	MaxDepth      int
	IncludeImages bool
}

// Validate returns an error if the job cannot be crawled.
func (j CrawlJob) Validate() error {
	u, err := url.Parse(j.StartURL)
	if err != nil {
		return Errorf(EINVALID, "invalid start URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Errorf(EINVALID, "start URL must use http or https")
	}
	if u.Host == "" {
		return Errorf(EINVALID, "start URL must include a host")
	}
	if j.MaxDepth < 1 || j.MaxDepth > MaxCrawlDepth {
		return Errorf(EINVALID, "crawl depth must be between 1 and %d", MaxCrawlDepth)
	}
	return nil
}

// Domain returns the host that every crawled resource must share.
func (j CrawlJob) Domain() string {
	u, err := url.Parse(j.StartURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Page is a fetched HTML page.
type Page struct {
	URL     string
	Depth   int
	HTML    string
	Title   string // <title> text
	Heading string // first <h1> text
}

// Image is a fetched binary asset.
type Image struct {
	URL         string
	ContentType string
	Data        []byte
}

// FetchFailure records a page that could not be fetched.
type FetchFailure struct {
	URL   string
	Depth int
	Err   error
}

// CrawlResult holds everything a crawl collected.
// Pages and Images are in fetch-completion order.
type CrawlResult struct {
	Pages    []*Page
	Images   []*Image
	Failures []*FetchFailure

	// Visited counts URLs dispatched for fetching. URLs left queued when
	// MaxPages stops the crawl are not included.
	Visited int
}

// Page returns the page fetched from rawURL, or nil.
func (r *CrawlResult) Page(rawURL string) *Page {
	for _, p := range r.Pages {
		if p.URL == rawURL {
			return p
		}
	}
	return nil
}

// Crawler collects the pages of a website.
type Crawler interface {
	// Crawl traverses the site described by job. Progress, if non-nil,
	// receives a report each time a page is dispatched.
	Crawl(ctx context.Context, job CrawlJob, progress ProgressFunc) (*CrawlResult, error)
}

// HTMLParser extracts crawl-relevant elements from HTML.
type HTMLParser interface {
	// Links returns the absolute http(s) URLs of anchors in document
	// order, resolved against baseURL, without fragments or duplicates.
	Links(html string, baseURL string) ([]string, error)

	// Images returns the absolute URLs of <img> sources, resolved against baseURL.
	Images(html string, baseURL string) ([]string, error)

	// Title returns the trimmed <title> text, or "".
	Title(html string) string

	// Heading returns the trimmed text of the first <h1>, or "".
	Heading(html string) string
}
