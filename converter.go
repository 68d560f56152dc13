package sitemd

import "context"

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms HTML content into Markdown.
	// Relative links and images are resolved against pageURL.
	Convert(html string, pageURL string) (string, error)
}

// FileConverter converts an uploaded document into Markdown.
type FileConverter interface {
	// ConvertFile reads the file at path and returns its Markdown form.
	// The fileType is the lower-case extension without the leading dot.
	ConvertFile(ctx context.Context, path string, fileType string) (string, error)
}

// ConversionService runs the two kinds of conversion job.
type ConversionService interface {
	// ConvertWebsite crawls and converts the site described by job.
	ConvertWebsite(ctx context.Context, job CrawlJob, progress ProgressFunc) (*ConversionResult, error)

	// ConvertFile converts the uploaded document at path and removes it.
	ConvertFile(ctx context.Context, path string, originalName string, progress ProgressFunc) (*ConversionResult, error)
}
