package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/zenleaftraders/zenleaftraders/pkg/kafka"
	"github.com/zenleaftraders/zenleaftraders/pkg/logger"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
)

// Kafka topic constants for cart domain events.
const (
	TopicCartUpdated = pkgkafka.TopicPrefix + ".cart.updated"
	TopicCartCleared = pkgkafka.TopicPrefix + ".cart.cleared"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the cart service.
const SourceCartService = "cart-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	Session   string         `json:"session"`
	Items     []CartItemData `json:"items"`
	ItemCount int            `json:"item_count"`
	Total     float64        `json:"total"` // rounded to cents
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	Name     string  `json:"name"`
	Size     string  `json:"size"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	Session string `json:"session"`
}

// Publisher is the subset of the Kafka producer used here.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart domain events to Kafka. Every event carries the
// instance origin and the change kind as metadata.
type Producer struct {
	kafka  Publisher
	origin string
	logger *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka Publisher, origin string, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		origin: origin,
		logger: logger,
	}
}

// Notify publishes the event matching the change kind.
func (p *Producer) Notify(ctx context.Context, change domain.Change) error {
	if change.Kind == domain.ChangeCleared {
		return p.PublishCartCleared(ctx, change.Session)
	}
	return p.PublishCartUpdated(ctx, change.Session, change.Items)
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, session string, items domain.Items) error {
	payload := make([]CartItemData, len(items))
	for i, item := range items {
		payload[i] = CartItemData{
			Name:     item.Name,
			Size:     item.Size,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}

	data := CartUpdatedData{
		Session:   session,
		Items:     payload,
		ItemCount: items.Count(),
		Total:     domain.Cents(items.Total()),
	}
	if err := p.publish(ctx, TopicCartUpdated, "cart.updated", domain.ChangeUpdated, session, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("session", session),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, session string) error {
	data := CartClearedData{Session: session}
	if err := p.publish(ctx, TopicCartCleared, "cart.cleared", domain.ChangeCleared, session, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("session", session),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, name string, kind domain.ChangeKind, session string, data any) error {
	event, err := pkgkafka.NewEvent(topic, session, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", name, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata(pkgkafka.MetadataOrigin, p.origin).
		WithMetadata(pkgkafka.MetadataChangeKind, string(kind))

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", name, err)
	}
	return nil
}
