// Package readability implements sitemd.Extractor with go-readability.
package readability

import (
	"net/url"
	"strings"

	"github.com/fwojciec/sitemd"
	"github.com/go-shiori/go-readability"
)

// Ensure Extractor implements sitemd.Extractor at compile time.
var _ sitemd.Extractor = (*Extractor)(nil)

// Extractor keeps the readable article of a page.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract processes raw HTML and returns the main content. Links and image
// sources in the content are made absolute when pageURL is valid.
func (e *Extractor) Extract(rawHTML string, pageURL string) (*sitemd.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, sitemd.Errorf(sitemd.EINVALID, "empty HTML input")
	}

	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		base = u
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return nil, err
	}

	return &sitemd.ExtractResult{
		Title:       article.Title,
		ContentHTML: article.Content,
	}, nil
}
