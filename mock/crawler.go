package mock

import (
	"context"

	"github.com/fwojciec/sitemd"
)

var (
	_ sitemd.Crawler       = (*Crawler)(nil)
	_ sitemd.HTMLParser    = (*HTMLParser)(nil)
	_ sitemd.DomainLimiter = (*DomainLimiter)(nil)
)

// Crawler is a mock implementation of sitemd.Crawler.
type Crawler struct {
	CrawlFn func(ctx context.Context, job sitemd.CrawlJob, progress sitemd.ProgressFunc) (*sitemd.CrawlResult, error)
}

func (c *Crawler) Crawl(ctx context.Context, job sitemd.CrawlJob, progress sitemd.ProgressFunc) (*sitemd.CrawlResult, error) {
	return c.CrawlFn(ctx, job, progress)
}

// HTMLParser is a mock implementation of sitemd.HTMLParser.
type HTMLParser struct {
	LinksFn  func(html string, baseURL string) ([]string, error)
	ImagesFn func(html string, baseURL string) ([]string, error)
	TitleFn   func(html string) string
	HeadingFn func(html string) string
}

func (p *HTMLParser) Links(html string, baseURL string) ([]string, error) {
	return p.LinksFn(html, baseURL)
}

func (p *HTMLParser) Images(html string, baseURL string) ([]string, error) {
	return p.ImagesFn(html, baseURL)
}

func (p *HTMLParser) Title(html string) string {
	return p.TitleFn(html)
}

func (p *HTMLParser) Heading(html string) string {
	return p.HeadingFn(html)
}

// DomainLimiter is a mock implementation of sitemd.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
