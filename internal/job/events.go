package job

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types published over a job's lifetime.
const (
	EventStarted  = "job.started"
	EventFinished = "job.finished"
)

// Event is the payload of a lifecycle message.
type Event struct {
	Type string    `json:"type"`
	Job  Job       `json:"job"`
	At   time.Time `json:"at"`
}

// Publisher announces job lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }

// MessageWriter is the part of *kafka.Writer a KafkaPublisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by job ID.
type KafkaPublisher struct {
	writer MessageWriter
}

// PublishBatchTimeout bounds how long a synchronous write waits for more
// messages to share its batch. Jobs publish one message at a time.
const PublishBatchTimeout = 10 * time.Millisecond

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           PublishBatchTimeout,
			AllowAutoTopicCreation: false,
		},
	}
}

// NewKafkaPublisherWithWriter builds a publisher on a custom writer.
func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish writes ev keyed by its job ID and waits for the broker.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Job.ID),
		Value: payload,
		Time:  ev.At,
	})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
