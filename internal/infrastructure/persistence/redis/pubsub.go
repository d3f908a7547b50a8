package redis

import (
	"context"

	"github.com/earth-innovators/merit-engine/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB BRIDGE
// ══════════════════════════════════════════════════════════════════════════════

// PubSubBridge adapts the go-redis client to messaging.RedisClient so the
// Redis event bus can fan events out to other engine instances.
type PubSubBridge struct {
	cache *Cache
}

// NewPubSubBridge creates a bridge over an existing cache connection.
func NewPubSubBridge(cache *Cache) *PubSubBridge {
	return &PubSubBridge{cache: cache}
}

// Publish implements messaging.RedisClient.
func (b *PubSubBridge) Publish(ctx context.Context, channel string, message interface{}) error {
	return b.cache.client.Publish(ctx, channel, message).Err()
}

// Subscribe implements messaging.RedisClient. The returned channel is
// closed when ctx is cancelled.
func (b *PubSubBridge) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := b.cache.client.Subscribe(ctx, channels...)

	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- messaging.RedisMessage{
					Channel: msg.Channel,
					Payload: msg.Payload,
				}
			}
		}
	}()

	return out, nil
}

// Close implements messaging.RedisClient. The underlying connection is
// shared with the cache, so closing the bridge is a no-op.
func (b *PubSubBridge) Close() error {
	return nil
}
