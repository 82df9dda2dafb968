package model

import (
	"time"
)

// FetchRecord describes the outcome of one fetch-extract task.
// It is produced once per dequeued URL and handed to sinks and reports.
//
// A record is either a success (Error is empty, Links holds every absolute
// link extracted from the body) or a failure (Error holds the cause and
// Links is empty).
type FetchRecord struct {
	// SessionID identifies the crawl run that produced this record.
	SessionID string `json:"session_id"`

	// URL is the page that was fetched, exactly as it was dequeued.
	URL string `json:"url"`

	// Links contains the absolute links found on the page, in document order.
	// Duplicates are kept; deduplication happens in the frontier.
	Links []string `json:"links,omitempty"`

	// ContentHash is the hex encoded SHA3-256 of the decoded body.
	// Empty for failed fetches.
	ContentHash string `json:"content_hash,omitempty"`

	// Error is the failure cause. Empty on success.
	Error string `json:"error,omitempty"`

	// FetchedAt is when the task finished.
	FetchedAt time.Time `json:"fetched_at"`

	// Duration is how long the fetch and extraction took.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the fetch completed without error.
func (r FetchRecord) Succeeded() bool {
	return r.Error == ""
}

// LinkCount returns the number of extracted links.
func (r FetchRecord) LinkCount() int {
	return len(r.Links)
}
