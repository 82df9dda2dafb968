// Package sink delivers fetch records to external systems while a crawl
// runs: a Kafka topic, a Redis list, a Neo4j link graph or the local
// history database. Every Sink satisfies crawler.Recorder.
//
// Sinks are called concurrently from crawl tasks and must be safe for
// concurrent use. A sink error is reported to the caller, which logs it;
// it never stops a crawl.
package sink

import (
	"context"
	"errors"

	"github.com/nao1215/linkspider/internal/model"
)

// Sink receives every fetch record of a crawl.
type Sink interface {
	Record(ctx context.Context, rec model.FetchRecord) error
	Close() error
}

// Multi fans a record out to several sinks. Every sink is called even if
// an earlier one fails; the errors are joined.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, rec model.FetchRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every record.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(context.Context, model.FetchRecord) error { return nil }

// Close implements Sink.
func (Discard) Close() error { return nil }
