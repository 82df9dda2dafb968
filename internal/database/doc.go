// Package database stores crawl history in SQLite (modernc.org/sqlite,
// CGO-free).
//
// The CrawlDB keeps:
//   - crawl sessions with their seeds and final counters
//   - one fetch row per dequeued URL, with its content hash or error
//   - the extracted links of each fetch, in document order
//
// History is write-only from the crawler's point of view. It backs the
// history command and is never used to resume a crawl.
package database
