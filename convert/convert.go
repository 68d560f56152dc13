// Package convert orchestrates website and file conversions: it runs the
// crawl, converts each page to Markdown, and assembles the final result.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/sitemd"
	"golang.org/x/sync/errgroup"
)

// Ensure Service implements sitemd.ConversionService at compile time.
var _ sitemd.ConversionService = (*Service)(nil)

// DefaultTitle names a website result when no page has a title.
const DefaultTitle = "Converted Website"

// DefaultConcurrency is the number of pages converted in parallel.
const DefaultConcurrency = 4

// Service converts websites and uploaded files to Markdown.
type Service struct {
	Crawler   sitemd.Crawler
	Converter sitemd.Converter
	Extractor sitemd.Extractor // optional main-content extraction
	Files     sitemd.FileConverter

	Concurrency int
	Now         func() time.Time
	Logger      *slog.Logger
}

// ConvertWebsite crawls the site described by job and combines every page
// into a single Markdown document.
//
// Progress is reported at 10 before the crawl, 20-70 by the crawler, 75
// once conversion starts, 90 when every page is converted and 95 when the
// result is assembled. Pages that fail to fetch or convert appear in the
// output as placeholders and never fail the job.
func (s *Service) ConvertWebsite(ctx context.Context, job sitemd.CrawlJob, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
	report := reporter(progress)

	report(10, "Starting website crawl")
	crawled, err := s.Crawler.Crawl(ctx, job, report)
	if err != nil {
		return nil, fmt.Errorf("crawl: %w", err)
	}

	report(75, fmt.Sprintf("Crawl finished, converting %d pages to Markdown", len(crawled.Pages)))
	sections, failed, err := s.convertPages(ctx, crawled.Pages)
	if err != nil {
		return nil, err
	}
	for _, f := range crawled.Failures {
		sections = append(sections, FetchFailureSection(f))
	}
	report(90, "Markdown conversion finished")

	markdown := Combine(job.StartURL, sections)
	title := SiteTitle(job.StartURL, crawled.Pages)
	if title == "" {
		title = DefaultTitle
	}

	result := &sitemd.ConversionResult{
		Markdown: markdown,
		Metadata: sitemd.ConversionMetadata{
			SourceURL:     job.StartURL,
			Title:         title,
			PageCount:     len(crawled.Pages),
			CrawlDepth:    job.MaxDepth,
			IncludeImages: job.IncludeImages,
			ConvertedAt:   s.now().UTC().Format(time.RFC3339),
			ImageCount:    len(crawled.Images),
			FailedCount:   failed + len(crawled.Failures),
			ContentHash:   ContentHash(markdown),
		},
		Images: crawled.Images,
	}
	report(95, "Result generated")

	s.logger().Info("website converted",
		"url", job.StartURL,
		"pages", result.Metadata.PageCount,
		"failed", result.Metadata.FailedCount,
		"bytes", len(markdown),
	)
	return result, nil
}

// ConvertFile converts the uploaded document at path. The file is a
// temporary copy owned by the job and is removed before returning,
// whether or not conversion succeeds.
//
// Progress is reported at 10, 30, 90 and 95.
func (s *Service) ConvertFile(ctx context.Context, path string, originalName string, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
	defer func() {
		if err := removeFile(path); err != nil {
			s.logger().Warn("removing uploaded file", "path", path, "err", err)
		}
	}()

	report := reporter(progress)
	name := filepath.Base(originalName)
	fileType := FileType(name)

	report(10, fmt.Sprintf("Starting conversion of %s", name))
	report(30, "Parsing file")

	markdown, err := s.Files.ConvertFile(ctx, path, fileType)
	if err != nil {
		return nil, fmt.Errorf("convert file %s: %w", name, err)
	}
	report(90, "Markdown conversion finished")

	result := &sitemd.ConversionResult{
		Markdown: markdown,
		Metadata: sitemd.ConversionMetadata{
			SourceURL:     "file://" + name,
			Title:         name,
			PageCount:     1,
			CrawlDepth:    0,
			IncludeImages: true,
			ConvertedAt:   s.now().UTC().Format(time.RFC3339),
			FileType:      fileType,
			ContentHash:   ContentHash(markdown),
		},
	}
	report(95, "Result generated")

	s.logger().Info("file converted", "name", name, "type", fileType, "bytes", len(markdown))
	return result, nil
}

// convertPages converts pages in parallel, keeping their order. Pages that
// fail to convert are replaced by placeholder sections and counted.
func (s *Service) convertPages(ctx context.Context, pages []*sitemd.Page) ([]Section, int, error) {
	sections := make([]Section, len(pages))
	failed := make([]bool, len(pages))

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, page := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			title, md, err := s.convertPage(page)
			if err != nil {
				s.logger().Warn("converting page", "url", page.URL, "err", err)
				sections[i] = ConversionFailureSection(page.URL, err)
				failed[i] = true
				return nil
			}
			sections[i] = PageSection(page.URL, title, md)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return sections, n, nil
}

// convertPage returns the heading and Markdown of page. With an Extractor
// set, only the main content is converted; extraction failures fall back
// to the full page. The heading is the page title, else its first <h1>,
// else the extracted title.
func (s *Service) convertPage(page *sitemd.Page) (string, string, error) {
	title := page.Title
	if title == "" {
		title = page.Heading
	}
	html := page.HTML
	if s.Extractor != nil {
		extracted, err := s.Extractor.Extract(page.HTML, page.URL)
		switch {
		case err != nil:
			s.logger().Debug("extraction failed, using full page", "url", page.URL, "err", err)
		case strings.TrimSpace(extracted.ContentHTML) != "":
			html = extracted.ContentHTML
			if title == "" {
				title = extracted.Title
			}
		}
	}
	if strings.TrimSpace(html) == "" {
		return title, "", nil
	}
	md, err := s.Converter.Convert(html, page.URL)
	if err != nil {
		return "", "", err
	}
	return title, md, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// FileType returns the lower-case extension of name without the dot.
func FileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ContentHash returns the hex xxhash64 digest of markdown.
func ContentHash(markdown string) string {
	return strconv.FormatUint(xxhash.Sum64String(markdown), 16)
}

func reporter(progress sitemd.ProgressFunc) sitemd.ProgressFunc {
	if progress == nil {
		return func(int, string) {}
	}
	return progress
}
