package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent from the cache.
var ErrMiss = errors.New("redis: cache miss")

// Cache is a TTL-bounded cache for per-tenant flag and config resolutions,
// with a pub/sub invalidation channel so sibling processes drop their entries
// when a write happens anywhere in the fleet.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("redis.Cache.Close: %w", err)
	}
	return nil
}

// Get returns the cached payload for key, or ErrMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis.Cache.Get: %w", err)
	}

	return val, nil
}

// Set stores payload under key for the configured TTL. Staleness is bounded
// by the TTL even if an invalidation message is lost.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) error {
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis.Cache.Set: %w", err)
	}
	return nil
}

// InvalidateTenant deletes every cached entry for the tenant and publishes the
// invalidation so other processes do the same.
func (c *Cache) InvalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	pattern := FlagKey(tenantID, "*")

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis.Cache.InvalidateTenant: del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis.Cache.InvalidateTenant: scan: %w", err)
	}

	if err := c.client.Publish(ctx, InvalidationChannel, tenantID.String()).Err(); err != nil {
		return fmt.Errorf("redis.Cache.InvalidateTenant: publish: %w", err)
	}

	return nil
}

// SubscribeInvalidations delivers tenant ids published by InvalidateTenant.
// The returned cleanup closes the subscription; the channel closes when ctx
// is done.
func (c *Cache) SubscribeInvalidations(ctx context.Context) (<-chan uuid.UUID, func(), error) {
	sub := c.client.Subscribe(ctx, InvalidationChannel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.Cache.SubscribeInvalidations: receive confirmation: %w", err)
	}

	out := make(chan uuid.UUID, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				id, err := uuid.Parse(msg.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// InvalidationChannel carries tenant ids whose flag cache must be dropped.
const InvalidationChannel = "flags:invalidate"

// FlagKey returns the cache key for a tenant's flag or config resolution.
func FlagKey(tenantID uuid.UUID, key string) string {
	return "flags:" + tenantID.String() + ":" + key
}
