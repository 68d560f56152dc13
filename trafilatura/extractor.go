// Package trafilatura implements sitemd.Extractor with go-trafilatura.
package trafilatura

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/fwojciec/sitemd"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Ensure Extractor implements sitemd.Extractor at compile time.
var _ sitemd.Extractor = (*Extractor)(nil)

// Extractor strips navigation, footers and other boilerplate from crawled
// pages, keeping the article body with its links and images.
type Extractor struct {
	// IncludeImages keeps <img> elements in the extracted content.
	IncludeImages bool
}

// NewExtractor creates a new Extractor that keeps images.
func NewExtractor() *Extractor {
	return &Extractor{IncludeImages: true}
}

// Extract processes raw HTML and returns the main content.
func (e *Extractor) Extract(rawHTML string, pageURL string) (*sitemd.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, sitemd.Errorf(sitemd.EINVALID, "empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback: true,
		IncludeLinks:   true,
		IncludeImages:  e.IncludeImages,
	}
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return nil, err
	}

	var contentHTML string
	if result.ContentNode != nil {
		var buf bytes.Buffer
		if err := html.Render(&buf, result.ContentNode); err != nil {
			return nil, err
		}
		contentHTML = buf.String()
	}

	return &sitemd.ExtractResult{
		Title:       result.Metadata.Title,
		ContentHTML: contentHTML,
	}, nil
}
