// Package model defines the data exchanged between the crawler and its
// consumers.
//
//   - FetchRecord: the outcome of one fetch-extract task
//   - CrawlSummary: the aggregate result of a crawl run
//
// The types live in their own package so that crawler, sink, database,
// metrics and report can share them without import cycles. Both are
// JSON serializable; sinks publish FetchRecord as JSON.
package model
