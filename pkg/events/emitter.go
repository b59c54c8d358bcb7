// Package events emits match lifecycle events to downstream consumers.
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/winefeed/vine/pkg/kafka"
	"github.com/winefeed/vine/pkg/models"
	"github.com/winefeed/vine/pkg/tracing"
)

// Event types on the match events topic.
const (
	EventLineMatched        = "line.matched"
	EventLineReviewed       = "line.reviewed"
	EventProductAutoCreated = "product.autocreated"
)

// Publisher is the transport surface the emitter needs.
type Publisher interface {
	PublishMatchEvent(ctx context.Context, event *kafka.MatchEvent) error
	PublishMatchEvents(ctx context.Context, events []*kafka.MatchEvent) error
}

// Emitter publishes match lifecycle events. A nil producer turns every emit
// into a no-op so callers never have to branch on configuration.
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter. producer may be nil.
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitLineMatched announces a new match result for a line.
func (e *Emitter) EmitLineMatched(ctx context.Context, line *models.Line, result *models.MatchResult) error {
	if e.producer == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLineMatched")
	defer span.End()

	event := &kafka.MatchEvent{
		EventType:  EventLineMatched,
		TenantID:   result.TenantID,
		LineID:     result.LineID,
		ImportID:   line.ImportID,
		ResultID:   result.ID,
		ProductID:  result.MatchedProductID,
		Status:     result.Status,
		Method:     result.Method,
		Confidence: result.Confidence,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit line.matched event")
		return err
	}

	return nil
}

// EmitLineReviewed announces a human review decision.
func (e *Emitter) EmitLineReviewed(ctx context.Context, line *models.Line, result *models.MatchResult) error {
	if e.producer == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitLineReviewed")
	defer span.End()

	event := &kafka.MatchEvent{
		EventType:  EventLineReviewed,
		TenantID:   result.TenantID,
		LineID:     result.LineID,
		ImportID:   line.ImportID,
		ResultID:   result.ID,
		ProductID:  result.MatchedProductID,
		Status:     result.Status,
		Method:     result.Method,
		Confidence: result.Confidence,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit line.reviewed event")
		return err
	}

	return nil
}

// EmitProductAutoCreated announces a catalog product minted by the matcher.
func (e *Emitter) EmitProductAutoCreated(ctx context.Context, line *models.Line, product *models.CatalogProduct) error {
	if e.producer == nil {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitProductAutoCreated")
	defer span.End()

	event := &kafka.MatchEvent{
		EventType: EventProductAutoCreated,
		TenantID:  product.TenantID,
		LineID:    line.ID,
		ImportID:  line.ImportID,
		ProductID: &product.ID,
	}

	if err := e.producer.PublishMatchEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit product.autocreated event")
		return err
	}

	return nil
}
