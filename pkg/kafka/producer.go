package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
)

// Producer emits match lifecycle events.
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// MatchEvent is the wire form of a match lifecycle change.
type MatchEvent struct {
	EventType  string             `json:"event_type"` // line.matched, line.reviewed, product.autocreated
	TenantID   string             `json:"tenant_id"`
	LineID     string             `json:"line_id"`
	ImportID   string             `json:"import_id,omitempty"`
	ResultID   string             `json:"result_id,omitempty"`
	ProductID  *string            `json:"product_id,omitempty"`
	Status     models.MatchStatus `json:"status,omitempty"`
	Method     models.MatchMethod `json:"method,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// PublishMatchEvent publishes a single match event, keyed by line so a line's
// history stays in partition order.
func (p *Producer) PublishMatchEvent(ctx context.Context, event *MatchEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishMatchEvent")
	defer span.End()

	msg, err := p.toMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, *msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish match event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"line_id":    event.LineID,
		"status":     event.Status,
	}).Debug("Published match event")

	return nil
}

// PublishMatchEvents publishes a batch of match events.
func (p *Producer) PublishMatchEvents(ctx context.Context, events []*MatchEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishMatchEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		msg, err := p.toMessage(event)
		if err != nil {
			return err
		}
		messages[i] = *msg
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(events),
		}).Error("Failed to publish match events batch")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_size": len(events),
	}).Debug("Published match events batch")

	return nil
}

func (p *Producer) toMessage(event *MatchEvent) (*kafka.Message, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.LineID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}, nil
}
