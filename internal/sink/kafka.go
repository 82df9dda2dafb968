package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nao1215/linkspider/internal/model"
)

// kafkaBatchTimeout bounds how long a synchronous write waits for a batch
// to fill. Each task writes one record, so batches rarely fill.
const kafkaBatchTimeout = 10 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each record as JSON, keyed by session ID so that one
// crawl's records land on one partition in order.
type Kafka struct {
	writer messageWriter
}

// NewKafka creates a Kafka sink for brokers and topic. The topic must exist.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           kafkaBatchTimeout,
			AllowAutoTopicCreation: false,
		},
	}
}

// NewKafkaWithWriter builds a sink around a custom writer (tests).
func NewKafkaWithWriter(writer messageWriter) *Kafka {
	return &Kafka{writer: writer}
}

// Record implements Sink.
func (k *Kafka) Record(ctx context.Context, rec model.FetchRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.SessionID),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
