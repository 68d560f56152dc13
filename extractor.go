package sitemd

// ExtractResult is the main content of a crawled page.
type ExtractResult struct {
	Title       string
	ContentHTML string // article HTML without navigation or footers
}

// Extractor narrows a page to its main content before Markdown conversion.
// Conversion falls back to the full page when extraction fails or yields
// nothing.
type Extractor interface {
	Extract(html string, pageURL string) (*ExtractResult, error)
}
