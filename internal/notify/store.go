package notify

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/rs/zerolog"
)

// NotifyingStore publishes a Change for every key it successfully writes.
// Notifications go out only after the whole write completed, so other
// processes never observe half of a SetMany.
type NotifyingStore struct {
	kv.Store
	bus    Bus
	logger zerolog.Logger
}

func NewNotifyingStore(store kv.Store, bus Bus, logger zerolog.Logger) *NotifyingStore {
	return &NotifyingStore{Store: store, bus: bus, logger: logger}
}

func (s *NotifyingStore) Set(ctx context.Context, key, value string) error {
	if err := s.Store.Set(ctx, key, value); err != nil {
		return err
	}
	s.publish(ctx, Change{Key: key, NewValue: value})
	return nil
}

func (s *NotifyingStore) SetMany(ctx context.Context, entries map[string]string) error {
	if err := s.Store.SetMany(ctx, entries); err != nil {
		return err
	}
	for k, v := range entries {
		s.publish(ctx, Change{Key: k, NewValue: v})
	}
	return nil
}

func (s *NotifyingStore) Delete(ctx context.Context, keys ...string) error {
	if err := s.Store.Delete(ctx, keys...); err != nil {
		return err
	}
	for _, k := range keys {
		s.publish(ctx, Change{Key: k, Deleted: true})
	}
	return nil
}

// publish failures are not write failures: the value is durable, other
// processes just learn about it later.
func (s *NotifyingStore) publish(ctx context.Context, change Change) {
	if err := s.bus.Publish(ctx, change); err != nil {
		s.logger.Warn().Err(err).Str("key", change.Key).Msg("change notification failed")
	}
}
