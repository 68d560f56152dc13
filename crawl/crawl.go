// Package crawl provides the bounded-depth, same-domain website crawler.
// A single coordinator goroutine owns the frontier and the page and image
// stores; a fixed pool of workers fetches pages and their images.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/fwojciec/sitemd"
	"golang.org/x/sync/errgroup"
)

// Ensure Crawler implements sitemd.Crawler at compile time.
var _ sitemd.Crawler = (*Crawler)(nil)

// DefaultConcurrency is the number of pages fetched in parallel.
const DefaultConcurrency = 5

// visitedExpectedURLs sizes the Bloom prefilter of the visited sets.
const visitedExpectedURLs = 10000

// Crawler collects the pages of a single site.
type Crawler struct {
	Fetcher     sitemd.Fetcher
	Assets      sitemd.AssetFetcher // nil disables image collection
	Parser      sitemd.HTMLParser
	RateLimiter sitemd.DomainLimiter // optional
	Concurrency int
	MaxPages    int             // 0 means no limit
	RetryDelays []time.Duration // nil means a single attempt
	Logger      *slog.Logger
}

// pageResult holds the outcome of fetching a single target.
type pageResult struct {
	target Target
	page   *sitemd.Page
	links  []string
	images []*sitemd.Image
	err    error
}

// Progress maps a dispatch at depth to overall task progress.
// Crawling occupies the 20-70% band of a website conversion.
func Progress(depth, maxDepth int) int {
	return min(20+50*(depth+1)/(maxDepth+1), 70)
}

// Crawl traverses the site described by job, starting at job.StartURL with
// depth 0. Links are followed while their depth does not exceed
// job.MaxDepth and their host matches the start URL; pages at the maximum
// depth are stored but not parsed for links or images.
//
// Failed fetches are recorded in the result and never abort the crawl.
// The only error returned is for an invalid job or a canceled context.
func (c *Crawler) Crawl(ctx context.Context, job sitemd.CrawlJob, progress sitemd.ProgressFunc) (*sitemd.CrawlResult, error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	domain := job.Domain()
	logger := c.logger()

	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	visited := NewVisitedSet(visitedExpectedURLs)
	claimedImages := NewVisitedSet(visitedExpectedURLs)
	frontier := NewFrontier(visited)
	frontier.Push(job.StartURL, 0)

	pages := NewPageStore()
	images := NewImageStore()
	var failures []*sitemd.FetchFailure

	workCh := make(chan Target)
	resultCh := make(chan pageResult)

	var g errgroup.Group
	for range concurrency {
		g.Go(func() error {
			for target := range workCh {
				resultCh <- c.process(ctx, job, domain, claimedImages, target)
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(resultCh)
	}()

	handleResult := func(res pageResult) {
		if res.err != nil {
			logger.Warn("skipping page", "url", res.target.URL, "depth", res.target.Depth, "err", res.err)
			failures = append(failures, &sitemd.FetchFailure{
				URL:   res.target.URL,
				Depth: res.target.Depth,
				Err:   res.err,
			})
			return
		}

		pages.Put(res.page)
		for _, img := range res.images {
			images.Put(img)
		}

		childDepth := res.target.Depth + 1
		if childDepth > job.MaxDepth {
			return
		}
		for _, link := range res.links {
			if !sameDomain(link, domain) {
				continue
			}
			frontier.Push(link, childDepth)
		}
	}

	dispatched := 0
	pending := 0
	var next *Target
	popNext := func() {
		if next != nil || (c.MaxPages > 0 && dispatched >= c.MaxPages) {
			return
		}
		if t, ok := frontier.Pop(); ok {
			next = &t
		}
	}
	popNext()

coordinatorLoop:
	for next != nil || pending > 0 {
		// A nil channel disables the send case when there is nothing to dispatch.
		var sendCh chan Target
		var target Target
		if next != nil {
			sendCh = workCh
			target = *next
		}

		select {
		case <-ctx.Done():
			break coordinatorLoop
		case sendCh <- target:
			dispatched++
			pending++
			next = nil
			if progress != nil {
				progress(Progress(target.Depth, job.MaxDepth),
					fmt.Sprintf("Crawling %s (depth %d/%d)", target.URL, target.Depth, job.MaxDepth))
			}
		case res := <-resultCh:
			pending--
			handleResult(res)
		}

		popNext()
	}

	// Stop workers and drain in-flight results. Fetches observe ctx, so
	// this finishes promptly after cancellation.
	close(workCh)
	for range resultCh {
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("crawl %s: %w", job.StartURL, err)
	}

	logger.Info("crawl finished",
		"url", job.StartURL,
		"pages", pages.Len(),
		"images", images.Len(),
		"failed", len(failures),
		"visited", dispatched,
		"queued", visited.Len()-dispatched,
	)

	return &sitemd.CrawlResult{
		Pages:    pages.All(),
		Images:   images.All(),
		Failures: failures,
		Visited:  dispatched,
	}, nil
}

// process fetches a single target and, unless it sits at the maximum
// depth, extracts its links and collects its images.
func (c *Crawler) process(ctx context.Context, job sitemd.CrawlJob, domain string, claimedImages *VisitedSet, target Target) pageResult {
	result := pageResult{target: target}

	html, err := c.fetchPage(ctx, target.URL)
	if err != nil {
		result.err = err
		return result
	}

	result.page = &sitemd.Page{
		URL:     target.URL,
		Depth:   target.Depth,
		HTML:    html,
		Title:   c.Parser.Title(html),
		Heading: c.Parser.Heading(html),
	}

	// Leaf pruning: nothing below the maximum depth will be fetched.
	if target.Depth >= job.MaxDepth {
		return result
	}

	links, err := c.Parser.Links(html, target.URL)
	if err != nil {
		c.logger().Warn("extracting links", "url", target.URL, "err", err)
	}
	result.links = links

	if job.IncludeImages && c.Assets != nil {
		result.images = c.collectImages(ctx, html, target.URL, domain, claimedImages)
	}

	return result
}

// collectImages fetches the same-domain images referenced by a page.
// Each image URL is claimed before fetching so concurrent pages sharing an
// image fetch it once. Individual failures are logged and skipped.
func (c *Crawler) collectImages(ctx context.Context, html, pageURL, domain string, claimed *VisitedSet) []*sitemd.Image {
	srcs, err := c.Parser.Images(html, pageURL)
	if err != nil {
		c.logger().Warn("extracting images", "url", pageURL, "err", err)
		return nil
	}

	var images []*sitemd.Image
	for _, src := range srcs {
		if !sameDomain(src, domain) || !claimed.Add(src) {
			continue
		}

		img, err := c.fetchImage(ctx, src)
		if err != nil {
			c.logger().Warn("skipping image", "url", src, "page", pageURL, "err", err)
			continue
		}
		images = append(images, img)
	}
	return images
}

func (c *Crawler) fetchPage(ctx context.Context, rawURL string) (string, error) {
	if err := c.wait(ctx, rawURL); err != nil {
		return "", err
	}
	return Retry(ctx, c.RetryDelays, func(ctx context.Context) (string, error) {
		return c.Fetcher.Fetch(ctx, rawURL)
	}, c.onRetry(rawURL))
}

func (c *Crawler) fetchImage(ctx context.Context, rawURL string) (*sitemd.Image, error) {
	if err := c.wait(ctx, rawURL); err != nil {
		return nil, err
	}
	return Retry(ctx, c.RetryDelays, func(ctx context.Context) (*sitemd.Image, error) {
		return c.Assets.FetchBytes(ctx, rawURL)
	}, c.onRetry(rawURL))
}

func (c *Crawler) wait(ctx context.Context, rawURL string) error {
	if c.RateLimiter == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	return c.RateLimiter.Wait(ctx, u.Host)
}

func (c *Crawler) onRetry(rawURL string) RetryFunc {
	return func(attempt int, err error) {
		c.logger().Debug("retrying fetch", "url", rawURL, "attempt", attempt, "err", err)
	}
}

func (c *Crawler) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

// sameDomain reports whether rawURL belongs to domain.
// URLs without a host are relative and count as same-domain.
func sameDomain(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == "" || u.Host == domain
}
