package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"verimeter/internal/metrics"
	"verimeter/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// MessageWriter is the part of *kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditPublisher streams stored audit entries to downstream consumers
type AuditPublisher interface {
	Publish(ctx context.Context, entry *models.AuditLog) error
	Close() error
}

type kafkaAuditPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaAuditPublisher builds a writer keyed by tenant. The hash balancer
// keeps every entry of one tenant on one partition. Writes are async:
// Publish only enqueues, and delivery failures surface through the
// completion callback.
func NewKafkaAuditPublisher(brokers []string, topic string, logger *logrus.Logger) AuditPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   deliveryReport(topic, logger),
	}
	return NewAuditPublisherWithWriter(writer, topic)
}

func deliveryReport(topic string, logger *logrus.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		for range msgs {
			metrics.RecordAuditPublishFailure()
		}
		if logger != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"topic":    topic,
				"messages": len(msgs),
			}).Error("audit entries were not delivered")
		}
	}
}

func NewAuditPublisherWithWriter(writer MessageWriter, topic string) AuditPublisher {
	return &kafkaAuditPublisher{writer: writer, topic: topic}
}

func (p *kafkaAuditPublisher) Publish(ctx context.Context, entry *models.AuditLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.TenantID),
		Value: payload,
		Time:  entry.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(entry.EventType)},
			{Key: "event_result", Value: []byte(entry.EventResult)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit entry to %s: %w", p.topic, err)
	}
	return nil
}

func (p *kafkaAuditPublisher) Close() error {
	return p.writer.Close()
}

type noopPublisher struct{}

// NewNoopAuditPublisher is used when no brokers are configured
func NewNoopAuditPublisher() AuditPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, *models.AuditLog) error { return nil }
func (noopPublisher) Close() error                                    { return nil }
