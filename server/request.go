package server

import (
	"errors"
	"strings"

	"github.com/fwojciec/sitemd"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConvertRequest is the body of POST /api/convert/.
type ConvertRequest struct {
	URL     string         `json:"url" validate:"required,http_url"`
	Options ConvertOptions `json:"options"`
	TaskID  string         `json:"task_id,omitempty" validate:"omitempty,max=128,printascii,excludesall=/?#"`
}

// ConvertOptions tunes a website conversion.
type ConvertOptions struct {
	CrawlDepth    *int  `json:"crawl_depth,omitempty" validate:"omitnil,min=1"`
	IncludeImages *bool `json:"include_images,omitempty"`
}

// Normalize fills in defaults: a missing scheme becomes https, depth
// defaults to 1 and images default to on.
func (r *ConvertRequest) Normalize() {
	r.URL = NormalizeURL(r.URL)
	if r.Options.CrawlDepth == nil {
		depth := 1
		r.Options.CrawlDepth = &depth
	}
	if r.Options.IncludeImages == nil {
		include := true
		r.Options.IncludeImages = &include
	}
}

// NormalizeURL trims rawURL and prepends https:// when it has no scheme.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL != "" && !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "https://" + rawURL
	}
	return rawURL
}

// Validate checks the request after Normalize.
func (r *ConvertRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// Job builds the crawl job, clamping the depth to maxDepth.
func (r *ConvertRequest) Job(maxDepth int) sitemd.CrawlJob {
	if maxDepth <= 0 || maxDepth > sitemd.MaxCrawlDepth {
		maxDepth = sitemd.MaxCrawlDepth
	}
	return sitemd.CrawlJob{
		StartURL:      r.URL,
		MaxDepth:      min(*r.Options.CrawlDepth, maxDepth),
		IncludeImages: *r.Options.IncludeImages,
	}
}

// validationError converts validator errors into an EINVALID error naming
// the first offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return sitemd.Errorf(sitemd.EINVALID, "invalid request: %v", err)
	}
	fe := verrs[0]
	field := fieldName(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return sitemd.Errorf(sitemd.EINVALID, "%s is required", field)
	case "http_url":
		return sitemd.Errorf(sitemd.EINVALID, "%s must be a valid http or https URL", field)
	case "min":
		return sitemd.Errorf(sitemd.EINVALID, "%s must be at least %s", field, fe.Param())
	default:
		return sitemd.Errorf(sitemd.EINVALID, "%s is invalid", field)
	}
}

var fieldNames = map[string]string{
	"ConvertRequest.URL":                "url",
	"ConvertRequest.TaskID":             "task_id",
	"ConvertRequest.Options.CrawlDepth": "options.crawl_depth",
}

func fieldName(namespace string) string {
	if name, ok := fieldNames[namespace]; ok {
		return name
	}
	return namespace
}
