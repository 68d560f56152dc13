package mock

import (
	"context"

	"github.com/fwojciec/sitemd"
)

var (
	_ sitemd.Converter     = (*Converter)(nil)
	_ sitemd.FileConverter = (*FileConverter)(nil)

	_ sitemd.ConversionService = (*ConversionService)(nil)
)

// Converter is a mock implementation of sitemd.Converter.
type Converter struct {
	ConvertFn func(html string, pageURL string) (string, error)
}

func (c *Converter) Convert(html string, pageURL string) (string, error) {
	return c.ConvertFn(html, pageURL)
}

// FileConverter is a mock implementation of sitemd.FileConverter.
type FileConverter struct {
	ConvertFileFn func(ctx context.Context, path string, fileType string) (string, error)
}

func (c *FileConverter) ConvertFile(ctx context.Context, path string, fileType string) (string, error) {
	return c.ConvertFileFn(ctx, path, fileType)
}

// ConversionService is a mock implementation of sitemd.ConversionService.
type ConversionService struct {
	ConvertWebsiteFn func(ctx context.Context, job sitemd.CrawlJob, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error)
	ConvertFileFn    func(ctx context.Context, path string, originalName string, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error)
}

func (s *ConversionService) ConvertWebsite(ctx context.Context, job sitemd.CrawlJob, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
	return s.ConvertWebsiteFn(ctx, job, progress)
}

func (s *ConversionService) ConvertFile(ctx context.Context, path string, originalName string, progress sitemd.ProgressFunc) (*sitemd.ConversionResult, error) {
	return s.ConvertFileFn(ctx, path, originalName, progress)
}
