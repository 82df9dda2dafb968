package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/linkspider/internal/metrics"
	"github.com/nao1215/linkspider/internal/model"
)

// DefaultConcurrency is the number of tasks allowed in flight when no
// other limit is configured.
const DefaultConcurrency = 10

// ErrNoSeeds is returned by Run when it is called without seed URLs.
var ErrNoSeeds = errors.New("no seed URLs given")

// State is the scheduler's view of the crawl.
type State int

const (
	// StateRunning means URLs are pending in the frontier.
	StateRunning State = iota

	// StateDraining means nothing is pending but tasks are still in flight
	// and may yet discover new URLs.
	StateDraining

	// StateDone means nothing is pending and nothing is in flight.
	// No further work can ever appear. Terminal.
	StateDone
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// stateOf derives the crawl state from a consistent snapshot of the
// frontier and the in-flight count.
func stateOf(pendingEmpty bool, inFlight int) State {
	switch {
	case !pendingEmpty:
		return StateRunning
	case inFlight > 0:
		return StateDraining
	default:
		return StateDone
	}
}

// Scheduler runs a crawl: it feeds URLs from a Frontier to at most N
// concurrent fetch-extract tasks and stops when no work remains.
//
// A single control loop owns the frontier and the in-flight count. Tasks
// never touch either; they send their result back over a channel and the
// loop applies the task's Enqueue and then decrements the in-flight count
// in one step. Done is therefore only observed after every enqueue a task
// could perform has been applied, and termination is re-evaluated on each
// completion event instead of on a timer.
type Scheduler struct {
	// fetcher is shared by all tasks.
	fetcher Fetcher

	// concurrency is the maximum number of tasks in flight.
	concurrency int

	logger  *slog.Logger
	stdout  io.Writer
	stderr  io.Writer
	rec     Recorder
	metrics *metrics.Collector

	// sessionID tags every record produced by this scheduler.
	sessionID string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConcurrency sets the maximum number of tasks in flight.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithOutput sets where the per-fetch progress lines are written.
// Successful fetches go to stdout and failures to stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Scheduler) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithRecorder sets a Recorder that receives every fetch record.
func WithRecorder(rec Recorder) Option {
	return func(s *Scheduler) {
		s.rec = rec
	}
}

// WithMetrics sets the Prometheus collector updated by the scheduler.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(s *Scheduler) {
		if id != "" {
			s.sessionID = id
		}
	}
}

// NewScheduler creates a Scheduler that fetches pages with fetcher.
func NewScheduler(fetcher Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:     fetcher,
		concurrency: DefaultConcurrency,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		sessionID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	return s
}

// SessionID returns the identifier attached to this scheduler's records.
func (s *Scheduler) SessionID() string {
	return s.sessionID
}

// Concurrency returns the in-flight limit.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Run crawls from seeds until the frontier is empty and no task is in
// flight, then returns a summary of the crawl.
//
// Individual fetch failures never make Run fail; a crawl in which every
// fetch failed still returns a summary and a nil error.
//
// Cancelling ctx stops further dispatch. Tasks already in flight run to
// completion (their requests carry ctx and typically fail fast). Run then
// returns the partial summary together with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, seeds ...string) (*model.CrawlSummary, error) {
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}

	frontier := NewFrontier()
	frontier.Enqueue(seeds...)

	summary := model.NewCrawlSummary(s.sessionID, seeds, s.concurrency)

	s.logger.Info("starting crawl",
		"session", s.sessionID,
		"seeds", len(seeds),
		"concurrency", s.concurrency,
	)

	// The group's limit is the admission gate; the loop never dispatches
	// past it either, so Go only waits for a finishing goroutine to return.
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	results := make(chan taskResult, s.concurrency)
	cancelled := ctx.Done()
	stopping := false
	inFlight := 0
	state := StateRunning

	for {
		if !stopping && ctx.Err() != nil {
			s.logger.Warn("crawl cancelled, waiting for in-flight tasks", "inFlight", inFlight)
			stopping = true
			cancelled = nil
		}

		for !stopping && inFlight < s.concurrency {
			pageURL, ok := frontier.Dequeue()
			if !ok {
				break
			}
			inFlight++
			summary.PeakInFlight = max(summary.PeakInFlight, inFlight)
			s.logger.Debug("dispatching task", "url", pageURL, "inFlight", inFlight)

			g.Go(func() error {
				result := fetchAndExtract(ctx, s.fetcher, s.sessionID, pageURL)
				s.record(ctx, result.record)
				results <- result
				return nil
			})
		}

		next := stateOf(frontier.IsPendingEmpty(), inFlight)
		if next != state {
			s.logger.Debug("crawl state changed", "from", state, "to", next)
			state = next
		}
		s.observe(frontier, inFlight)

		if state == StateDone || (stopping && inFlight == 0) {
			break
		}

		select {
		case result := <-results:
			if result.err == nil {
				frontier.Enqueue(result.record.Links...)
			}
			inFlight--
			summary.Add(result.record)
			s.report(result)
		case <-cancelled:
			// Handled at the top of the loop.
		}
	}

	_ = g.Wait() //nolint:errcheck // tasks never return an error

	summary.FinishedAt = time.Now()
	summary.Visited = frontier.Visited()
	summary.Pending = frontier.Pending()
	summary.Interrupted = stopping

	s.logger.Info("crawl finished",
		"session", s.sessionID,
		"visited", len(summary.Visited),
		"fetched", summary.Fetched,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed(),
	)

	if stopping {
		return summary, ctx.Err()
	}
	return summary, nil
}

// report writes the human-readable progress line for a finished task.
func (s *Scheduler) report(result taskResult) {
	rec := result.record
	if result.err != nil {
		fmt.Fprintf(s.stderr, "Failed to fetch %s: %v\n", rec.URL, result.err)
		s.logger.Debug("fetch failed", "url", rec.URL, "error", result.err)
		return
	}
	fmt.Fprintf(s.stdout, "Fetched %s with %d links\n", rec.URL, rec.LinkCount())
	s.logger.Debug("fetch succeeded", "url", rec.URL, "links", rec.LinkCount(), "duration", rec.Duration)
}

// record hands a finished record to the recorder, if any. Records of
// tasks that finish after cancellation are still delivered.
func (s *Scheduler) record(ctx context.Context, rec model.FetchRecord) {
	s.metrics.ObserveFetch(rec)
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to record fetch", "url", rec.URL, "error", err)
	}
}

// observe publishes queue gauges.
func (s *Scheduler) observe(frontier *Frontier, inFlight int) {
	if s.metrics == nil {
		return
	}
	visited, pending := frontier.Len()
	s.metrics.SetQueue(inFlight, visited, pending)
}
