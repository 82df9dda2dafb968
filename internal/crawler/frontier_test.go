package crawler

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

// TestFrontier tests the visited/pending bookkeeping.
func TestFrontier(t *testing.T) {
	t.Parallel()

	t.Run("new frontier is empty", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		if !f.IsPendingEmpty() {
			t.Error("expected pending to be empty")
		}
		if _, ok := f.Dequeue(); ok {
			t.Error("expected Dequeue on empty frontier to return false")
		}
	})

	t.Run("dequeue moves url from pending to visited", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Enqueue("http://google.com")

		got, ok := f.Dequeue()
		if !ok || got != "http://google.com" {
			t.Fatalf("expected http://google.com, got %q (ok=%v)", got, ok)
		}
		if !f.IsPendingEmpty() {
			t.Error("expected pending to be empty after dequeue")
		}
		if !f.IsVisited("http://google.com") {
			t.Error("expected url to be visited")
		}
		if _, ok := f.Dequeue(); ok {
			t.Error("expected no more pending urls")
		}
	})

	t.Run("visited url is never enqueued again", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Enqueue("http://google.com")
		f.Dequeue()

		f.Enqueue("http://google.com")
		if !f.IsPendingEmpty() {
			t.Error("expected visited url to be dropped")
		}
		visited, pending := f.Len()
		if visited != 1 || pending != 0 {
			t.Errorf("expected (1, 0), got (%d, %d)", visited, pending)
		}
	})

	t.Run("duplicate enqueue is idempotent", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Enqueue("http://u/")
		first := f.Pending()
		f.Enqueue("http://u/")
		second := f.Pending()

		if !slices.Equal(first, second) {
			t.Errorf("expected pending unchanged, got %v then %v", first, second)
		}
		if len(second) != 1 {
			t.Errorf("expected exactly one pending url, got %v", second)
		}
	})

	t.Run("duplicates within one call are collapsed", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Enqueue("http://a/", "http://a/", "http://b/")

		if got := f.Pending(); !slices.Equal(got, []string{"http://a/", "http://b/"}) {
			t.Errorf("unexpected pending set: %v", got)
		}
	})

	t.Run("no normalization is applied", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Enqueue("http://a", "http://a/", "HTTP://A/")

		if _, pending := f.Len(); pending != 3 {
			t.Errorf("expected 3 distinct urls, got %d", pending)
		}
	})

	t.Run("dequeue is first in first out", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Enqueue("http://c/", "http://a/", "http://b/")

		var order []string
		for {
			u, ok := f.Dequeue()
			if !ok {
				break
			}
			order = append(order, u)
		}
		want := []string{"http://c/", "http://a/", "http://b/"}
		if !slices.Equal(order, want) {
			t.Errorf("expected %v, got %v", want, order)
		}
	})

	t.Run("enqueue with no urls is a no-op", func(t *testing.T) {
		t.Parallel()

		f := NewFrontier()
		f.Enqueue()
		if !f.IsPendingEmpty() {
			t.Error("expected pending to stay empty")
		}
	})
}

// TestFrontierConcurrent checks the at-most-once dequeue and disjointness
// invariants under concurrent use.
func TestFrontierConcurrent(t *testing.T) {
	t.Parallel()

	const (
		producers = 8
		consumers = 8
		perWorker = 200
	)

	f := NewFrontier()

	var mu sync.Mutex
	seen := make(map[string]int)

	var producerWG sync.WaitGroup
	for p := range producers {
		producerWG.Add(1)
		go func() {
			defer producerWG.Done()
			for i := range perWorker {
				// Every producer enqueues the same URLs, plus one of its own.
				f.Enqueue(fmt.Sprintf("http://shared/%d", i), fmt.Sprintf("http://p%d/%d", p, i))
			}
		}()
	}

	var consumerWG sync.WaitGroup
	done := make(chan struct{})
	for range consumers {
		consumerWG.Add(1)
		go func() {
			defer consumerWG.Done()
			for {
				u, ok := f.Dequeue()
				if ok {
					mu.Lock()
					seen[u]++
					mu.Unlock()
					continue
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}

	producerWG.Wait()
	close(done)
	consumerWG.Wait()

	// Drain anything left after the consumers stopped.
	for {
		u, ok := f.Dequeue()
		if !ok {
			break
		}
		seen[u]++
	}

	for u, n := range seen {
		if n != 1 {
			t.Errorf("url %s dequeued %d times", u, n)
		}
	}

	want := perWorker + producers*perWorker
	if len(seen) != want {
		t.Errorf("expected %d distinct urls, got %d", want, len(seen))
	}

	visited, pending := f.Len()
	if visited != want || pending != 0 {
		t.Errorf("expected (%d, 0), got (%d, %d)", want, visited, pending)
	}
	for _, u := range f.Pending() {
		if f.IsVisited(u) {
			t.Errorf("url %s is both visited and pending", u)
		}
	}
}
