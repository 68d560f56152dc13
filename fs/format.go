// Package fs writes conversion results to the local filesystem.
package fs

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/sitemd"
)

// ImageDir is the directory, relative to the output root, holding images.
const ImageDir = "images"

// ImagePath returns the output-relative path for an image. Names derive
// from the xxhash of the source URL so repeated saves are stable and
// distinct URLs with the same base name do not collide.
func ImagePath(img *sitemd.Image) string {
	return path.Join(ImageDir, fmt.Sprintf("%016x%s", xxhash.Sum64String(img.URL), imageExt(img)))
}

func imageExt(img *sitemd.Image) string {
	if u, err := url.Parse(img.URL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	if img.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(img.ContentType)
		if err == nil {
			if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
				return exts[0]
			}
		}
	}
	return ""
}

// FormatResult renders a result as a Markdown document with YAML
// frontmatter. Image references are rewritten to the paths in links.
func FormatResult(result *sitemd.ConversionResult, links map[string]string) string {
	m := result.Metadata

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("source: ")
	b.WriteString(m.SourceURL)
	if m.Title != "" {
		b.WriteString("\ntitle: ")
		b.WriteString(strconv.Quote(m.Title))
	}
	b.WriteString("\npages: ")
	b.WriteString(strconv.Itoa(m.PageCount))
	if m.FileType != "" {
		b.WriteString("\nfile_type: ")
		b.WriteString(m.FileType)
	}
	b.WriteString("\nconverted: ")
	b.WriteString(m.ConvertedAt)
	b.WriteString("\n---\n\n")
	b.WriteString(rewriteImages(result.Markdown, links))
	return b.String()
}

// rewriteImages replaces Markdown link targets that match a key in links.
func rewriteImages(md string, links map[string]string) string {
	if len(links) == 0 {
		return md
	}
	pairs := make([]string, 0, 2*len(links))
	for from, to := range links {
		pairs = append(pairs, "]("+from+")", "]("+to+")", "]("+from+" ", "]("+to+" ")
	}
	return strings.NewReplacer(pairs...).Replace(md)
}
