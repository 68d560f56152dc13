package crawl

import (
	"sync"

	"github.com/fwojciec/sitemd/bloom"
)

// visitedFalsePositiveRate sizes the Bloom prefilter of a VisitedSet.
const visitedFalsePositiveRate = 0.01

// VisitedSet records URLs that have been dispatched for fetching.
// It only grows. Membership is exact: the Bloom filter answers the common
// "definitely new" case and the map settles everything else.
// It is safe for concurrent use by multiple goroutines.
type VisitedSet struct {
	mu     sync.Mutex
	filter *bloom.Filter
	urls   map[string]struct{}
}

// NewVisitedSet creates a VisitedSet sized for n expected URLs.
func NewVisitedSet(n uint) *VisitedSet {
	return &VisitedSet{
		filter: bloom.NewFilter(n, visitedFalsePositiveRate),
		urls:   make(map[string]struct{}),
	}
}

// Add records url and returns true if it was not already present.
func (s *VisitedSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.filter.TestAndAdd(url) {
		if _, ok := s.urls[url]; ok {
			return false
		}
	}
	s.urls[url] = struct{}{}
	return true
}

// Contains reports whether url has been added.
func (s *VisitedSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.filter.Test(url) {
		return false
	}
	_, ok := s.urls[url]
	return ok
}

// Len returns the number of URLs in the set.
func (s *VisitedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
