package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/autolane/search-service/internal/domain"
	"github.com/autolane/search-service/internal/indexer"
)

// Topics carrying change events from the upstream record services.
// Messages are keyed by entityId, so per-entity ordering holds within a
// partition; there is no ordering guarantee across topics.
const (
	TopicOfferEvents     = "offer-events"
	TopicPurchaseEvents  = "purchase-events"
	TopicTransportEvents = "transport-events"
)

// ConsumerGroup is the shared group id for all three topic consumers.
const ConsumerGroup = "search-indexer"

// Topics returns the full list of change-event topics.
func Topics() []string {
	return []string{TopicOfferEvents, TopicPurchaseEvents, TopicTransportEvents}
}

// Consumer routes change events to the document indexer. Processing is
// idempotent because the indexer's writes are full-document replaces, so
// redelivered messages converge to the same index state.
type Consumer struct {
	indexer *indexer.Indexer
	logger  *slog.Logger
}

// NewConsumer creates a new change-event consumer.
func NewConsumer(ix *indexer.Indexer, logger *slog.Logger) *Consumer {
	return &Consumer{
		indexer: ix,
		logger:  logger,
	}
}

// Handle processes one raw message from any of the change-event topics.
// Malformed envelopes and unknown entity types are logged and skipped
// (returning nil commits them); one bad message must never stall the
// partition. Indexing failures are returned so they are counted and
// dropped, with reindex-all as the recovery path.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	var ev domain.ChangeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.WarnContext(ctx, "skipping malformed change event",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if ev.EntityID == "" {
		c.logger.WarnContext(ctx, "skipping change event without entity id",
			slog.String("topic", msg.Topic),
			slog.String("event_type", ev.EventType),
		)
		return nil
	}

	if !domain.IsKnownEntityType(ev.EntityType) {
		c.logger.WarnContext(ctx, "skipping change event with unknown entity type",
			slog.String("topic", msg.Topic),
			slog.String("entity_type", ev.EntityType),
			slog.String("entity_id", ev.EntityID),
		)
		return nil
	}

	if ev.IsDeletion() {
		if err := c.indexer.DeleteEntity(ctx, ev.EntityType, ev.EntityID); err != nil {
			return fmt.Errorf("handle %s: %w", ev.EventType, err)
		}
		c.logger.InfoContext(ctx, "removed entity from index",
			slog.String("entity_type", ev.EntityType),
			slog.String("entity_id", ev.EntityID),
		)
		return nil
	}

	if err := c.indexer.IndexEntity(ctx, ev.EntityType, ev.EntityID, ev.Payload); err != nil {
		return fmt.Errorf("handle %s: %w", ev.EventType, err)
	}

	c.logger.InfoContext(ctx, "indexed entity from change event",
		slog.String("event_type", ev.EventType),
		slog.String("entity_type", ev.EntityType),
		slog.String("entity_id", ev.EntityID),
	)
	return nil
}
