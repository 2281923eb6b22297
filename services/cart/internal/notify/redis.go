package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/domain"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/metrics"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/storage"
)

// DefaultChannel is the Redis Pub/Sub channel carrying cart change signals.
const DefaultChannel = "cart:changes"

// changeMessage is the wire form of a change signal. It names the session
// but carries no items: receivers re-read the slot.
type changeMessage struct {
	Origin  string            `json:"origin"`
	Session string            `json:"session"`
	Kind    domain.ChangeKind `json:"kind"`
}

// RedisPublisher signals other instances that a session's slot changed.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	origin  string
}

// NewRedisPublisher creates a publisher tagging every message with origin.
func NewRedisPublisher(client redis.UniversalClient, channel, origin string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		origin:  origin,
	}
}

// Notify publishes a change signal.
func (p *RedisPublisher) Notify(ctx context.Context, change domain.Change) error {
	data, err := json.Marshal(changeMessage{
		Origin:  p.origin,
		Session: change.Session,
		Kind:    change.Kind,
	})
	if err != nil {
		return fmt.Errorf("marshal change message: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// RedisListener receives change signals from other instances, re-derives the
// session's cart from storage and hands it to a local notifier. Signals from
// its own origin are ignored.
type RedisListener struct {
	client  redis.UniversalClient
	channel string
	origin  string
	backend storage.Backend
	target  Notifier
	logger  *slog.Logger

	pubsub *redis.PubSub
}

// NewRedisListener creates a listener. Call Subscribe before Run.
func NewRedisListener(
	client redis.UniversalClient,
	channel, origin string,
	backend storage.Backend,
	target Notifier,
	logger *slog.Logger,
) *RedisListener {
	return &RedisListener{
		client:  client,
		channel: channel,
		origin:  origin,
		backend: backend,
		target:  target,
		logger:  logger,
	}
}

// Subscribe subscribes to the channel and waits for Redis to confirm.
func (l *RedisListener) Subscribe(ctx context.Context) error {
	pubsub := l.client.Subscribe(ctx, l.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}
	l.pubsub = pubsub
	return nil
}

// Run dispatches incoming signals until ctx is canceled.
func (l *RedisListener) Run(ctx context.Context) error {
	if l.pubsub == nil {
		if err := l.Subscribe(ctx); err != nil {
			return err
		}
	}
	defer l.pubsub.Close()

	l.logger.Info("cart change listener started", slog.String("channel", l.channel))

	ch := l.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("cart change listener stopping", slog.String("channel", l.channel))
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.handle(ctx, msg.Payload)
		}
	}
}

func (l *RedisListener) handle(ctx context.Context, payload string) {
	var msg changeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil || msg.Session == "" {
		l.logger.WarnContext(ctx, "ignoring malformed cart change message",
			slog.String("channel", l.channel),
		)
		return
	}
	if msg.Origin == l.origin {
		return
	}

	data, err := l.backend.Slot(msg.Session).Get(ctx)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to re-read cart after remote change",
			slog.String("session", msg.Session),
			slog.String("error", err.Error()),
		)
		return
	}
	items, _ := domain.Load(data)

	metrics.CrossInstanceChanges.Inc()
	if err := l.target.Notify(ctx, domain.NewChange(msg.Session, msg.Kind, items)); err != nil {
		l.logger.ErrorContext(ctx, "failed to dispatch remote cart change",
			slog.String("session", msg.Session),
			slog.String("error", err.Error()),
		)
	}
}
