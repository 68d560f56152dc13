package convert

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/fwojciec/sitemd"
)

// Separator is placed between page sections of a combined document.
const Separator = "\n---\n\n"

// Section is the Markdown of one page in a combined document.
type Section struct {
	URL      string
	Markdown string
}

// PageSection renders a converted page under a title heading and a
// comment naming its source. An empty title falls back to the URL.
func PageSection(pageURL, title, markdown string) Section {
	if strings.TrimSpace(title) == "" {
		title = pageURL
	}
	return Section{
		URL:      pageURL,
		Markdown: fmt.Sprintf("# %s\n\n<!-- source: %s -->\n\n%s", strings.TrimSpace(title), pageURL, markdown),
	}
}

// ConversionFailureSection is the placeholder for a page whose HTML could
// not be converted.
func ConversionFailureSection(pageURL string, err error) Section {
	return placeholder(pageURL, fmt.Sprintf("*Error converting page: %v*\n", err))
}

// FetchFailureSection is the placeholder for a page that could not be fetched.
func FetchFailureSection(f *sitemd.FetchFailure) Section {
	return placeholder(f.URL, fmt.Sprintf("*Error fetching page: %v*\n", f.Err))
}

func placeholder(pageURL, body string) Section {
	return Section{
		URL:      pageURL,
		Markdown: fmt.Sprintf("# %s\n\n<!-- source: %s -->\n\n%s", pageURL, pageURL, body),
	}
}

// Combine joins sections with Separator. The section for startURL, if
// present, comes first; the rest keep their order. There is no trailing
// separator.
func Combine(startURL string, sections []Section) string {
	ordered := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.URL == startURL {
			ordered = append(ordered, s.Markdown)
			break
		}
	}
	first := len(ordered) == 1
	for _, s := range sections {
		if first && s.URL == startURL {
			first = false
			continue
		}
		ordered = append(ordered, s.Markdown)
	}
	return strings.Join(ordered, Separator)
}

// SiteTitle names a crawled site: the <title> of the start page when it
// has one, otherwise that of the first page stored. Headings are not
// considered. Returns "" when neither has a title.
func SiteTitle(startURL string, pages []*sitemd.Page) string {
	for _, p := range pages {
		if p.URL == startURL && p.Title != "" {
			return p.Title
		}
	}
	if len(pages) > 0 {
		return pages[0].Title
	}
	return ""
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
