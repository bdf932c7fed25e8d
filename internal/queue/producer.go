package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkautil "github.com/olajoao/signal-desk/pkg/kafka"

	"github.com/olajoao/signal-desk/internal/events"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by Producer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes jobs to one topic.
type Producer struct {
	writer      MessageWriter
	topic       string
	codec       Codec
	maxAttempts int
}

// NewProducer creates a producer for topic. Every job it enqueues gets a
// budget of maxAttempts attempts.
func NewProducer(brokers, topic string, codec Codec, maxAttempts int) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
		"encoding", codec.ContentType(),
		"max_attempts", maxAttempts,
	)

	return NewProducerWithWriter(kafkautil.NewWriter(brokerList, topic), topic, codec, maxAttempts), nil
}

// NewProducerWithWriter creates a producer around an existing writer.
func NewProducerWithWriter(w MessageWriter, topic string, codec Codec, maxAttempts int) *Producer {
	return &Producer{writer: w, topic: topic, codec: codec, maxAttempts: maxAttempts}
}

// buildMessage encodes an envelope into a Kafka message keyed for tenant locality.
func (p *Producer) buildMessage(env *Envelope) (kafka.Message, error) {
	value, err := p.codec.Encode(env)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(env.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: contentTypeHeader, Value: []byte(p.codec.ContentType())},
			{Key: "job_id", Value: []byte(env.ID)},
			{Key: "kind", Value: []byte(env.Kind)},
			{Key: "attempt", Value: []byte(strconv.Itoa(env.Attempt))},
		},
		Time: time.Now(),
	}, nil
}

func (p *Producer) write(ctx context.Context, envs ...*Envelope) error {
	msgs := make([]kafka.Message, 0, len(envs))
	for _, env := range envs {
		msg, err := p.buildMessage(env)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write %d message(s) to Kafka topic %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

// EnqueueEventJob publishes an event job. It is called once the event has
// been durably recorded.
func (p *Producer) EnqueueEventJob(ctx context.Context, eventID, eventType string, metadata json.RawMessage, timestampISO, tenantID string) error {
	job := events.EventJob{
		EventID:   eventID,
		Type:      eventType,
		Metadata:  metadata,
		Timestamp: timestampISO,
		TenantID:  tenantID,
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid event job: %w", err)
	}

	env, err := NewEnvelope(KindEvent, tenantID, p.maxAttempts, job)
	if err != nil {
		return err
	}
	if err := p.write(ctx, env); err != nil {
		return err
	}

	slog.Debug("Enqueued event job", "event_id", eventID, "tenant_id", tenantID, "job_id", env.ID)
	return nil
}

// EnqueueDeliveries publishes one delivery job per notification in a single
// write.
func (p *Producer) EnqueueDeliveries(ctx context.Context, jobs []events.DeliveryJob) error {
	if len(jobs) == 0 {
		return nil
	}
	envs := make([]*Envelope, 0, len(jobs))
	for i := range jobs {
		env, err := NewEnvelope(KindNotification, jobs[i].TenantID, p.maxAttempts, jobs[i])
		if err != nil {
			return err
		}
		envs = append(envs, env)
	}
	if err := p.write(ctx, envs...); err != nil {
		return err
	}

	slog.Debug("Enqueued delivery jobs", "count", len(jobs))
	return nil
}

// Republish writes an envelope as-is. The runner uses it to schedule retries.
func (p *Producer) Republish(ctx context.Context, env *Envelope) error {
	return p.write(ctx, env)
}

// Close gracefully closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
