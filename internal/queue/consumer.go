package queue

import (
	"context"
	"fmt"
	"log/slog"

	kafkautil "github.com/olajoao/signal-desk/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader used by Consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fetches job envelopes from one topic. Offsets are committed
// explicitly with Commit.
type Consumer struct {
	reader MessageReader
	topic  string
}

// NewConsumer creates a consumer-group reader for topic.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}
	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)
	reader := kafka.NewReader(kafkautil.NewReaderConfig(brokerList, topic, groupID))
	kafkautil.LogReaderConfig(topic)

	return NewConsumerWithReader(reader, topic), nil
}

// NewConsumerWithReader creates a consumer around an existing reader.
func NewConsumerWithReader(r MessageReader, topic string) *Consumer {
	return &Consumer{reader: r, topic: topic}
}

// Fetch reads the next message and decodes its envelope. The raw message is
// returned even when decoding fails so the caller can commit past it.
func (c *Consumer) Fetch(ctx context.Context) (*Envelope, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	env, err := codecForMessage(&msg).Decode(msg.Value)
	if err != nil {
		return nil, &msg, err
	}
	return env, &msg, nil
}

// Commit commits the offset of msg.
func (c *Consumer) Commit(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close gracefully closes the Kafka reader.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	return nil
}
