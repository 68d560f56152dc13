package htmltomarkdown

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fwojciec/sitemd"
)

// Ensure FileConverter implements sitemd.FileConverter at compile time.
var _ sitemd.FileConverter = (*FileConverter)(nil)

// FileConverter converts uploaded documents to Markdown.
//
// HTML documents go through the HTML converter, Markdown and plain text
// are returned as-is, and delimited data (CSV, TSV) becomes a Markdown table.
type FileConverter struct {
	conv *Converter
}

// NewFileConverter creates a FileConverter backed by conv.
func NewFileConverter(conv *Converter) *FileConverter {
	return &FileConverter{conv: conv}
}

// SupportedFileTypes lists the extensions ConvertFile accepts.
var SupportedFileTypes = []string{"html", "htm", "xhtml", "md", "markdown", "txt", "csv", "tsv"}

// ConvertFile reads the file at path and returns its Markdown form.
func (c *FileConverter) ConvertFile(ctx context.Context, path string, fileType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fileType = strings.ToLower(strings.TrimPrefix(fileType, "."))
	if !slices.Contains(SupportedFileTypes, fileType) {
		return "", sitemd.Errorf(sitemd.EINVALID, "unsupported file type: %q", fileType)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	switch fileType {
	case "md", "markdown", "txt":
		return string(data), nil
	case "csv":
		return c.convertDelimited(data, ',')
	case "tsv":
		return c.convertDelimited(data, '\t')
	default:
		return c.conv.Convert(string(data), "")
	}
}

// convertDelimited renders delimited rows as an HTML table, first row as
// the header, and converts it with the table plugin.
func (c *FileConverter) convertDelimited(data []byte, comma rune) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var b strings.Builder
	b.WriteString("<table>")
	rows := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", sitemd.Errorf(sitemd.EINVALID, "invalid delimited data: %v", err)
		}

		cell := "td"
		if rows == 0 {
			cell = "th"
		}
		b.WriteString("<tr>")
		for _, field := range record {
			fmt.Fprintf(&b, "<%s>%s</%s>", cell, html.EscapeString(field), cell)
		}
		b.WriteString("</tr>")
		rows++
	}
	b.WriteString("</table>")

	if rows == 0 {
		return "", sitemd.Errorf(sitemd.EINVALID, "empty table")
	}
	return c.conv.Convert(b.String(), "")
}
