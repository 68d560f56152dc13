// Package goquery implements sitemd.HTMLParser using goquery CSS selectors.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/sitemd"
)

// Ensure Parser implements sitemd.HTMLParser at compile time.
var _ sitemd.HTMLParser = (*Parser)(nil)

// Parser extracts links, image sources and titles from HTML documents.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Links returns every <a href> target resolved against baseURL.
// Non-HTTP links (javascript:, mailto:, tel:, data:) are skipped, fragments
// are stripped and duplicates removed. Document order is preserved.
func (p *Parser) Links(html string, baseURL string) ([]string, error) {
	return p.collect(html, baseURL, "a[href]", "href")
}

// Images returns every <img src> resolved against baseURL.
func (p *Parser) Images(html string, baseURL string) ([]string, error) {
	return p.collect(html, baseURL, "img[src]", "src")
}

// Title returns the trimmed <title> text.
func (p *Parser) Title(html string) string {
	return p.firstText(html, "title")
}

// Heading returns the trimmed text of the first <h1>.
func (p *Parser) Heading(html string) string {
	return p.firstText(html, "h1")
}

func (p *Parser) firstText(html, selector string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func (p *Parser) collect(html, baseURL, selector, attr string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, sitemd.Errorf(sitemd.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, sitemd.Errorf(sitemd.EINVALID, "failed to parse HTML: %v", err)
	}

	// <base href> changes how relative references resolve.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved := resolveURL(base, href); resolved != "" {
			if b, err := url.Parse(resolved); err == nil {
				base = b
			}
		}
	}

	seen := make(map[string]bool)
	var urls []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		ref, exists := sel.Attr(attr)
		if !exists || strings.TrimSpace(ref) == "" {
			return
		}

		if isNonHTTPLink(ref) {
			return
		}

		resolved := resolveURL(base, ref)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		urls = append(urls, resolved)
	})

	return urls, nil
}

// resolveURL resolves a relative URL against a base URL and drops the fragment.
// Returns "" for references that do not resolve to http or https.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// isNonHTTPLink reports whether href uses a scheme that cannot be crawled.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
