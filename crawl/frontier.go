package crawl

import "sync"

// Target is a URL waiting to be fetched at a given crawl depth.
type Target struct {
	URL   string
	Depth int
}

// Frontier is a FIFO queue of pending targets backed by a VisitedSet.
// A URL is marked visited when it is pushed, so it is queued at most once
// no matter how many pages link to it.
// It is safe for concurrent use by multiple goroutines.
type Frontier struct {
	mu      sync.Mutex
	visited *VisitedSet
	queue   []Target
}

// NewFrontier creates a Frontier that records pushed URLs in visited.
func NewFrontier(visited *VisitedSet) *Frontier {
	return &Frontier{visited: visited}
}

// Push queues url at depth.
// Returns false if the URL has already been visited.
func (f *Frontier) Push(url string, depth int) bool {
	if !f.visited.Add(url) {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, Target{URL: url, Depth: depth})
	return true
}

// Pop returns the oldest queued target.
// The bool result is false if the frontier is empty.
func (f *Frontier) Pop() (Target, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return Target{}, false
	}
	t := f.queue[0]
	f.queue[0] = Target{}
	f.queue = f.queue[1:]
	return t, true
}

// Len returns the number of queued targets.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}
