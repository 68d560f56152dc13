package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fwojciec/sitemd"
)

// Ensure ResultStore implements sitemd.ResultStore at compile time.
var _ sitemd.ResultStore = (*ResultStore)(nil)

// ResultStore writes results under baseDir/name. Files are written to
// baseDir/name.tmp and moved into place on Commit, so a reader never sees
// a partially written directory.
//
// The committed layout is:
//
//	name/index.md       Markdown with frontmatter
//	name/metadata.json  ConversionMetadata
//	name/images/...     collected images
type ResultStore struct {
	baseDir string
	name    string
}

// NewResultStore creates a new ResultStore.
func NewResultStore(baseDir, name string) *ResultStore {
	return &ResultStore{baseDir: baseDir, name: name}
}

func (s *ResultStore) tempDir() string {
	return filepath.Join(s.baseDir, s.name+".tmp")
}

// Dir returns the directory the result is committed to.
func (s *ResultStore) Dir() string {
	return filepath.Join(s.baseDir, s.name)
}

// Save writes result and its images to the temporary directory.
func (s *ResultStore) Save(result *sitemd.ConversionResult) error {
	if result == nil {
		return sitemd.Errorf(sitemd.EINVALID, "result required")
	}

	dir := s.tempDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	links := make(map[string]string, len(result.Images))
	for _, img := range result.Images {
		rel := ImagePath(img)
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(full, img.Data, 0644); err != nil {
			return err
		}
		links[img.URL] = rel
	}

	if err := os.WriteFile(filepath.Join(dir, "index.md"), []byte(FormatResult(result, links)), 0644); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(result.Metadata, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), meta, 0644)
}

// Commit replaces any previous output with the saved result.
func (s *ResultStore) Commit() error {
	if err := os.RemoveAll(s.Dir()); err != nil {
		return err
	}
	return os.Rename(s.tempDir(), s.Dir())
}

// Abort discards the saved result.
func (s *ResultStore) Abort() error {
	return os.RemoveAll(s.tempDir())
}

// WriteResult saves result to store and commits it. Pending changes are
// aborted if either step fails.
func WriteResult(store sitemd.ResultStore, result *sitemd.ConversionResult) error {
	if err := store.Save(result); err != nil {
		_ = store.Abort()
		return fmt.Errorf("saving result: %w", err)
	}
	if err := store.Commit(); err != nil {
		_ = store.Abort()
		return fmt.Errorf("committing result: %w", err)
	}
	return nil
}
