package crawler

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/linkspider/internal/model"
)

// Fetcher retrieves a page and returns its body as text.
// Implementations must be safe for concurrent use; the scheduler shares a
// single Fetcher across all tasks.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// FetcherFunc adapts an ordinary function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, pageURL string) (string, error)

// Fetch calls f(ctx, pageURL).
func (f FetcherFunc) Fetch(ctx context.Context, pageURL string) (string, error) {
	return f(ctx, pageURL)
}

// Recorder receives the record of every finished task.
// Errors returned by Record are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, record model.FetchRecord) error
}

// taskResult is what a task reports back to the scheduler loop.
type taskResult struct {
	record model.FetchRecord
	err    error
}

// fetchAndExtract performs one task: fetch pageURL, then extract its links.
// It does not touch the frontier; the scheduler applies the single Enqueue
// for this task when the result arrives. There is no retry.
func fetchAndExtract(ctx context.Context, fetcher Fetcher, sessionID, pageURL string) taskResult {
	start := time.Now()
	record := model.FetchRecord{
		SessionID: sessionID,
		URL:       pageURL,
	}

	body, err := fetcher.Fetch(ctx, pageURL)
	if err != nil {
		record.Error = err.Error()
	} else {
		record.Links = ExtractLinks(body)
		record.ContentHash = contentHash(body)
	}

	record.FetchedAt = time.Now()
	record.Duration = record.FetchedAt.Sub(start)
	return taskResult{record: record, err: err}
}

// contentHash returns the hex encoded SHA3-256 of body.
func contentHash(body string) string {
	sum := sha3.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
