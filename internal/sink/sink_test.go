package sink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/nao1215/linkspider/internal/model"
)

func sampleRecord() model.FetchRecord {
	return model.FetchRecord{
		SessionID:   "session-123",
		URL:         "http://x/a",
		Links:       []string{"http://x/b", "http://y/"},
		ContentHash: "abc",
		FetchedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:    time.Second,
	}
}

type countingSink struct {
	mu      sync.Mutex
	records []model.FetchRecord
	err     error
	closed  bool
}

func (s *countingSink) Record(_ context.Context, rec model.FetchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *countingSink) Close() error {
	s.closed = true
	return s.err
}

func TestMulti(t *testing.T) {
	t.Parallel()

	t.Run("records to every sink even after a failure", func(t *testing.T) {
		t.Parallel()

		failing := &countingSink{err: errors.New("down")}
		ok := &countingSink{}
		m := Multi{failing, ok}

		err := m.Record(context.Background(), sampleRecord())
		if err == nil || !strings.Contains(err.Error(), "down") {
			t.Errorf("expected joined error, got %v", err)
		}
		if len(ok.records) != 1 {
			t.Errorf("expected second sink to receive the record, got %d", len(ok.records))
		}
	})

	t.Run("closes every sink", func(t *testing.T) {
		t.Parallel()

		a, b := &countingSink{}, &countingSink{}
		if err := (Multi{a, b}).Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !a.closed || !b.closed {
			t.Error("expected both sinks to be closed")
		}
	})

	t.Run("empty multi is a no-op", func(t *testing.T) {
		t.Parallel()

		if err := (Multi{}).Record(context.Background(), sampleRecord()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	var s Sink = Discard{}
	if err := s.Record(context.Background(), sampleRecord()); err != nil {
		t.Errorf("Record() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafka(t *testing.T) {
	t.Parallel()

	t.Run("writer flushes single records quickly", func(t *testing.T) {
		t.Parallel()

		k := NewKafka([]string{"localhost:9092"}, "crawl")
		w, ok := k.writer.(*kafka.Writer)
		if !ok {
			t.Fatalf("expected *kafka.Writer, got %T", k.writer)
		}
		if w.BatchTimeout != kafkaBatchTimeout {
			t.Errorf("BatchTimeout = %v, expected %v", w.BatchTimeout, kafkaBatchTimeout)
		}
		if w.Topic != "crawl" {
			t.Errorf("Topic = %q, expected %q", w.Topic, "crawl")
		}
	})

	t.Run("publishes JSON keyed by session", func(t *testing.T) {
		t.Parallel()

		w := &fakeWriter{}
		k := NewKafkaWithWriter(w)
		rec := sampleRecord()

		if err := k.Record(context.Background(), rec); err != nil {
			t.Fatalf("Record() = %v", err)
		}
		if len(w.msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(w.msgs))
		}
		if string(w.msgs[0].Key) != rec.SessionID {
			t.Errorf("unexpected key %q", w.msgs[0].Key)
		}

		var got model.FetchRecord
		if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
			t.Fatalf("failed to decode message: %v", err)
		}
		if got.URL != rec.URL || len(got.Links) != 2 || got.ContentHash != rec.ContentHash {
			t.Errorf("unexpected payload %+v", got)
		}
	})

	t.Run("returns writer error", func(t *testing.T) {
		t.Parallel()

		k := NewKafkaWithWriter(&fakeWriter{err: errors.New("write failed")})
		if err := k.Record(context.Background(), sampleRecord()); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("close closes the writer", func(t *testing.T) {
		t.Parallel()

		w := &fakeWriter{}
		if err := NewKafkaWithWriter(w).Close(); err != nil {
			t.Fatalf("Close() = %v", err)
		}
		if !w.closed {
			t.Error("expected writer to be closed")
		}
	})
}

type fakeRedis struct {
	key    string
	values []any
	err    error
	closed bool
}

func (r *fakeRedis) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	r.key = key
	r.values = append(r.values, values...)
	cmd := redis.NewIntCmd(ctx)
	if r.err != nil {
		cmd.SetErr(r.err)
		return cmd
	}
	cmd.SetVal(int64(len(r.values)))
	return cmd
}

func (r *fakeRedis) Close() error {
	r.closed = true
	return nil
}

func TestRedis(t *testing.T) {
	t.Parallel()

	t.Run("pushes JSON onto the key", func(t *testing.T) {
		t.Parallel()

		client := &fakeRedis{}
		r := NewRedisWithClient(client, "linkspider:fetches")

		if err := r.Record(context.Background(), sampleRecord()); err != nil {
			t.Fatalf("Record() = %v", err)
		}
		if client.key != "linkspider:fetches" {
			t.Errorf("unexpected key %q", client.key)
		}
		if len(client.values) != 1 {
			t.Fatalf("expected 1 value, got %d", len(client.values))
		}

		payload, ok := client.values[0].([]byte)
		if !ok {
			t.Fatalf("expected []byte payload, got %T", client.values[0])
		}
		var got model.FetchRecord
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if got.URL != "http://x/a" {
			t.Errorf("unexpected payload %+v", got)
		}
	})

	t.Run("returns command error", func(t *testing.T) {
		t.Parallel()

		r := NewRedisWithClient(&fakeRedis{err: errors.New("READONLY")}, "k")
		if err := r.Record(context.Background(), sampleRecord()); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("key and close", func(t *testing.T) {
		t.Parallel()

		client := &fakeRedis{}
		r := NewRedisWithClient(client, "k")
		if r.Key() != "k" {
			t.Errorf("Key() = %q", r.Key())
		}
		if err := r.Close(); err != nil {
			t.Fatalf("Close() = %v", err)
		}
		if !client.closed {
			t.Error("expected client to be closed")
		}
	})
}

// fakeTx embeds the interface so it satisfies its unexported methods.
type fakeTx struct {
	neo4j.ManagedTransaction
	query  string
	params map[string]any
	err    error
}

func (tx *fakeTx) Run(_ context.Context, query string, params map[string]any) (neo4j.ResultWithContext, error) {
	tx.query = query
	tx.params = params
	return nil, tx.err
}

type fakeSession struct {
	tx     *fakeTx
	closed bool
}

func (s *fakeSession) ExecuteWrite(_ context.Context, work neo4j.ManagedTransactionWork, _ ...func(*neo4j.TransactionConfig)) (any, error) {
	return work(s.tx)
}

func (s *fakeSession) Close(context.Context) error {
	s.closed = true
	return nil
}

type fakeDriver struct {
	session *fakeSession
	config  neo4j.SessionConfig
	closed  bool
}

func (d *fakeDriver) NewSession(_ context.Context, config neo4j.SessionConfig) SessionRunner {
	d.config = config
	return d.session
}

func (d *fakeDriver) Close(context.Context) error {
	d.closed = true
	return nil
}

func TestNeo4j(t *testing.T) {
	t.Parallel()

	t.Run("writes page and links in a write session", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{session: &fakeSession{tx: &fakeTx{}}}
		n := NewNeo4jWithDriver(driver, "crawl")

		if err := n.Record(context.Background(), sampleRecord()); err != nil {
			t.Fatalf("Record() = %v", err)
		}
		if driver.config.AccessMode != neo4j.AccessModeWrite {
			t.Error("expected a write session")
		}
		if driver.config.DatabaseName != "crawl" {
			t.Errorf("DatabaseName = %q, expected %q", driver.config.DatabaseName, "crawl")
		}
		if !driver.session.closed {
			t.Error("expected session to be closed")
		}
		if !strings.Contains(driver.session.tx.query, "LINKS_TO") {
			t.Errorf("unexpected query %q", driver.session.tx.query)
		}
		if driver.session.tx.params["url"] != "http://x/a" {
			t.Errorf("unexpected params %v", driver.session.tx.params)
		}
	})

	t.Run("returns transaction error", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{session: &fakeSession{tx: &fakeTx{err: errors.New("constraint")}}}
		n := NewNeo4jWithDriver(driver, "neo4j")

		if err := n.Record(context.Background(), sampleRecord()); err == nil {
			t.Fatal("expected error, got nil")
		}
		if !driver.session.closed {
			t.Error("expected session to be closed after failure")
		}
	})

	t.Run("close closes the driver", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{}
		if err := NewNeo4jWithDriver(driver, "neo4j").Close(); err != nil {
			t.Fatalf("Close() = %v", err)
		}
		if !driver.closed {
			t.Error("expected driver to be closed")
		}
	})
}

func TestBuildPageQuery(t *testing.T) {
	t.Parallel()

	t.Run("successful fetch", func(t *testing.T) {
		t.Parallel()

		query, params := buildPageQuery(sampleRecord())

		for _, want := range []string{"MERGE (p:Page {url: $url})", "UNWIND $links AS link", "[:LINKS_TO {session_id: $session_id}]"} {
			if !strings.Contains(query, want) {
				t.Errorf("query %q does not contain %q", query, want)
			}
		}
		if params["session_id"] != "session-123" {
			t.Errorf("session_id = %v", params["session_id"])
		}
		if params["error"] != nil {
			t.Errorf("expected nil error param, got %v", params["error"])
		}
		if params["fetched_at"] != "2026-01-02T03:04:05Z" {
			t.Errorf("fetched_at = %v", params["fetched_at"])
		}
		links, ok := params["links"].([]string)
		if !ok || len(links) != 2 {
			t.Errorf("unexpected links param %v", params["links"])
		}
	})

	t.Run("failed fetch has empty links and an error", func(t *testing.T) {
		t.Parallel()

		rec := model.FetchRecord{SessionID: "s", URL: "http://down/", Error: "connection refused"}
		_, params := buildPageQuery(rec)

		links, ok := params["links"].([]string)
		if !ok || links == nil || len(links) != 0 {
			t.Errorf("expected empty non-nil links, got %#v", params["links"])
		}
		if params["error"] != "connection refused" {
			t.Errorf("error = %v", params["error"])
		}
		if params["content_hash"] != nil {
			t.Errorf("expected nil content_hash, got %v", params["content_hash"])
		}
	})
}
