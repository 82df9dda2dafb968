// Package crawler implements the crawl orchestration: the URL frontier,
// link extraction, the fetch-extract task and the bounded-concurrency
// scheduler with termination detection.
//
// # Components
//
//   - Frontier: disjoint visited and pending URL sets with atomic
//     dequeue-and-mark-visited.
//   - ExtractLinks: anchor hrefs that start with "http", in document order.
//   - Fetcher: the HTTP capability, supplied by the caller.
//   - Scheduler: runs at most N tasks at once and stops when nothing is
//     pending and nothing is in flight.
//
// # Termination
//
// The scheduler's control loop is the only owner of the frontier and of
// the in-flight count. A task reports its result over a channel; the loop
// enqueues the discovered links and only then decrements the in-flight
// count. The crawl is done when, after applying a result, the frontier has
// nothing pending and the count is zero.
//
// # Usage
//
//	s := crawler.NewScheduler(fetcher, crawler.WithConcurrency(10))
//	summary, err := s.Run(ctx, "https://example.com/")
//
// # Limitations
//
// There is no depth limit, politeness delay, robots.txt handling, URL
// canonicalization or retry. A failed fetch is logged and the URL stays
// visited.
package crawler
