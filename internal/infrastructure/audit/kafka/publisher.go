package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

const DefaultTopic = "evidence.search.audit"

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes one JSON audit event per completed search, keyed by request id.
type Publisher struct {
	writer Writer
	logger *slog.Logger
}

// NewPublisher writes asynchronously so the search path never waits on the brokers.
// Delivery failures are logged by the completion callback.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidConfiguration, "kafka audit", errors.New("at least one broker is required"))
	}
	if topic == "" {
		topic = DefaultTopic
	}
	logger := slog.Default().With("component", "kafka-audit", "topic", topic)
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("audit_publish_failed", "count", len(messages), "error", err)
			}
		},
	}
	return &Publisher{writer: w, logger: logger}, nil
}

func NewPublisherWithWriter(writer Writer) *Publisher {
	return &Publisher{writer: writer, logger: slog.Default().With("component", "kafka-audit")}
}

func (p *Publisher) RecordSearch(ctx context.Context, event domain.SearchAuditEvent) error {
	key := event.RequestID
	if key == "" {
		key = uuid.NewString()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("search_completed")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing audit event: %w", err)
	}
	p.logger.Debug("audit_event_published", "key", key, "value_size", len(value))
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
