package sitemd

// ConversionResult is the output of a completed conversion task.
// It is written once and never modified afterwards.
type ConversionResult struct {
	TaskID   string             `json:"task_id"`
	Markdown string             `json:"markdown"`
	Metadata ConversionMetadata `json:"metadata"`

	// Images holds the assets collected during the crawl. They are not
	// part of the API payload but can be written out by a ResultStore.
	Images []*Image `json:"-"`
}

// ConversionMetadata describes where a result came from.
type ConversionMetadata struct {
	SourceURL     string `json:"source_url"`
	Title         string `json:"title,omitempty"`
	PageCount     int    `json:"page_count"`
	CrawlDepth    int    `json:"crawl_depth"`
	IncludeImages bool   `json:"include_images"`
	ConvertedAt   string `json:"converted_at"` // RFC 3339
	FileType      string `json:"file_type,omitempty"`
	ImageCount    int    `json:"image_count"`
	FailedCount   int    `json:"failed_count"`
	ContentHash   string `json:"content_hash"`
}

// ResultStore persists a conversion result outside the task store.
// Save writes to a temporary location; Commit makes changes permanent;
// Abort discards pending changes.
type ResultStore interface {
	Save(result *ConversionResult) error
	Commit() error
	Abort() error
}
