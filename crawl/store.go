package crawl

import "github.com/fwojciec/sitemd"

// PageStore maps URLs to fetched pages, preserving insertion order.
// It is owned by a single crawl and is not safe for concurrent use.
type PageStore struct {
	pages map[string]*sitemd.Page
	order []string
}

// NewPageStore creates an empty PageStore.
func NewPageStore() *PageStore {
	return &PageStore{pages: make(map[string]*sitemd.Page)}
}

// Put stores page under its URL. Replacing a page keeps its original position.
func (s *PageStore) Put(page *sitemd.Page) {
	if _, ok := s.pages[page.URL]; !ok {
		s.order = append(s.order, page.URL)
	}
	s.pages[page.URL] = page
}

// Get returns the page stored for url.
func (s *PageStore) Get(url string) (*sitemd.Page, bool) {
	p, ok := s.pages[url]
	return p, ok
}

// Len returns the number of stored pages.
func (s *PageStore) Len() int { return len(s.order) }

// All returns the pages in insertion order.
func (s *PageStore) All() []*sitemd.Page {
	pages := make([]*sitemd.Page, 0, len(s.order))
	for _, u := range s.order {
		pages = append(pages, s.pages[u])
	}
	return pages
}

// ImageStore maps URLs to fetched images, preserving insertion order.
// It is owned by a single crawl and is not safe for concurrent use.
type ImageStore struct {
	images map[string]*sitemd.Image
	order  []string
}

// NewImageStore creates an empty ImageStore.
func NewImageStore() *ImageStore {
	return &ImageStore{images: make(map[string]*sitemd.Image)}
}

// Put stores img under its URL.
func (s *ImageStore) Put(img *sitemd.Image) {
	if _, ok := s.images[img.URL]; !ok {
		s.order = append(s.order, img.URL)
	}
	s.images[img.URL] = img
}

// Has reports whether an image is stored for url.
func (s *ImageStore) Has(url string) bool {
	_, ok := s.images[url]
	return ok
}

// Len returns the number of stored images.
func (s *ImageStore) Len() int { return len(s.order) }

// All returns the images in insertion order.
func (s *ImageStore) All() []*sitemd.Image {
	images := make([]*sitemd.Image, 0, len(s.order))
	for _, u := range s.order {
		images = append(images, s.images[u])
	}
	return images
}
