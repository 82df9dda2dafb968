package crawler

import (
	"slices"
	"sync"
)

// Frontier tracks which URLs have been visited and which are waiting to be
// fetched. The two sets are always disjoint, and a URL that has been visited
// is never queued again.
//
// URLs are opaque strings: no normalization is applied, so
// "http://a/" and "http://a" are different entries.
//
// Dequeue order is FIFO over first insertion, which makes a crawl
// breadth-first. Callers must not rely on this order for correctness.
type Frontier struct {
	mu sync.Mutex

	// visited holds every URL ever returned by Dequeue.
	visited map[string]struct{}

	// pending holds URLs enqueued but not yet dequeued.
	pending map[string]struct{}

	// queue orders the members of pending by first insertion.
	queue []string
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		visited: make(map[string]struct{}),
		pending: make(map[string]struct{}),
		queue:   make([]string, 0),
	}
}

// Enqueue adds every URL that has not been visited and is not already
// pending. Visited URLs and duplicates are silently dropped.
func (f *Frontier) Enqueue(urls ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range urls {
		if _, ok := f.visited[u]; ok {
			continue
		}
		if _, ok := f.pending[u]; ok {
			continue
		}
		f.pending[u] = struct{}{}
		f.queue = append(f.queue, u)
	}
}

// Dequeue removes one pending URL, marks it visited and returns it.
// The second result is false when nothing is pending; Dequeue never blocks
// waiting for work.
func (f *Frontier) Dequeue() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}

	u := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]

	delete(f.pending, u)
	f.visited[u] = struct{}{}
	return u, true
}

// IsPendingEmpty reports whether no URL is waiting to be dequeued.
// It says nothing about work still in flight.
func (f *Frontier) IsPendingEmpty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending) == 0
}

// IsVisited reports whether u has been dequeued.
func (f *Frontier) IsVisited(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[u]
	return ok
}

// Len returns the sizes of the visited and pending sets.
func (f *Frontier) Len() (visited, pending int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited), len(f.pending)
}

// Visited returns a sorted snapshot of the visited set.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.visited)
}

// Pending returns a sorted snapshot of the pending set.
func (f *Frontier) Pending() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return sortedKeys(f.pending)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
