package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces cart slots in Redis.
const KeyPrefix = "cart:"

// RedisBackend stores each session's cart document under cart:<session>.
type RedisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed slot store. Every write refreshes
// the slot's TTL so idle carts expire.
func NewRedisBackend(client redis.UniversalClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		client: client,
		ttl:    ttl,
	}
}

// Slot returns the slot for the given session.
func (b *RedisBackend) Slot(session string) Slot {
	return &redisSlot{
		client: b.client,
		key:    KeyPrefix + session,
		ttl:    b.ttl,
	}
}

type redisSlot struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func (s *redisSlot) Get(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

func (s *redisSlot) Set(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *redisSlot) Remove(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}
