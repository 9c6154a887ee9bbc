package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus relays changes over a Redis pub/sub channel per namespace.
type RedisBus struct {
	client   *redis.Client
	pubsub   *redis.PubSub
	channel  string
	origin   string
	registry *registry
	logger   zerolog.Logger

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRedisBus(ctx context.Context, client *redis.Client, namespace string, logger zerolog.Logger) (*RedisBus, error) {
	channel := fmt.Sprintf("storefront:%s:changes", namespace)
	pubsub := client.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed so no early publish is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	b := &RedisBus{
		client:   client,
		pubsub:   pubsub,
		channel:  channel,
		origin:   uuid.NewString(),
		registry: newRegistry(),
		logger:   logger.With().Str("component", "redis_bus").Logger(),
	}
	b.wg.Add(1)
	go b.receiveLoop()
	return b, nil
}

func (b *RedisBus) Origin() string {
	return b.origin
}

func (b *RedisBus) Publish(ctx context.Context, change Change) error {
	change.Origin = b.origin
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change failed: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(key string, fn func(Change)) func() {
	return b.registry.add(key, fn)
}

func (b *RedisBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.pubsub.Close()
	})
	b.wg.Wait()
	return err
}

func (b *RedisBus) receiveLoop() {
	defer b.wg.Done()
	for msg := range b.pubsub.Channel() {
		var change Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			b.logger.Warn().Err(err).Msg("dropping malformed change")
			continue
		}
		if change.Origin == b.origin {
			continue
		}
		b.registry.dispatch(change)
	}
}
