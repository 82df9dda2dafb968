package model

import (
	"time"
)

// CrawlSummary is the result of a complete crawl run.
//
// It is built by the scheduler when the crawl reaches the done state
// (or is interrupted) and consumed by report writers and the history
// database.
type CrawlSummary struct {
	// SessionID uniquely identifies this crawl run.
	SessionID string `json:"session_id"`

	// Seeds are the URLs the crawl started from.
	Seeds []string `json:"seeds"`

	// Concurrency is the maximum number of tasks allowed in flight.
	Concurrency int `json:"concurrency"`

	// StartedAt is when the scheduler started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the scheduler stopped.
	FinishedAt time.Time `json:"finished_at"`

	// Visited lists every URL that was dequeued, sorted.
	Visited []string `json:"visited"`

	// Pending lists URLs still waiting when the crawl stopped.
	// Always empty for a crawl that ran to completion.
	Pending []string `json:"pending,omitempty"`

	// Fetched is the number of successful fetches.
	Fetched int `json:"fetched"`

	// Failed is the number of failed fetches.
	Failed int `json:"failed"`

	// LinksFound is the total number of absolute links extracted,
	// counting duplicates.
	LinksFound int `json:"links_found"`

	// PeakInFlight is the highest number of concurrent tasks observed.
	PeakInFlight int `json:"peak_in_flight"`

	// Interrupted is true if the crawl was cancelled before completion.
	Interrupted bool `json:"interrupted"`

	// Failures maps failed URLs to their error messages.
	Failures map[string]string `json:"failures,omitempty"`
}

// NewCrawlSummary creates an empty summary for a new crawl session.
func NewCrawlSummary(sessionID string, seeds []string, concurrency int) *CrawlSummary {
	return &CrawlSummary{
		SessionID:   sessionID,
		Seeds:       append([]string(nil), seeds...),
		Concurrency: concurrency,
		StartedAt:   time.Now(),
		Visited:     make([]string, 0),
		Failures:    make(map[string]string),
	}
}

// Add accumulates a finished fetch into the summary counters.
func (s *CrawlSummary) Add(record FetchRecord) {
	if record.Succeeded() {
		s.Fetched++
		s.LinksFound += record.LinkCount()
		return
	}
	s.Failed++
	s.Failures[record.URL] = record.Error
}

// Elapsed returns the wall-clock duration of the crawl.
func (s *CrawlSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Completed reports whether the crawl drained the frontier.
func (s *CrawlSummary) Completed() bool {
	return !s.Interrupted && len(s.Pending) == 0
}
