package main

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// backends holds the kv store and the change bus of this process plus the
// redis client they may share.
type backends struct {
	store kv.Store
	bus   notify.Bus
	redis *redis.Client
}

func (b *backends) redisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	b.redis = client
	return client, nil
}

func openBackends(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backends, error) {
	b := &backends{}

	store, err := b.openStore(ctx, cfg)
	if err != nil {
		b.close(log)
		return nil, err
	}
	b.store = store

	bus, err := b.openBus(ctx, cfg, log)
	if err != nil {
		b.close(log)
		return nil, err
	}
	b.bus = bus
	return b, nil
}

func (b *backends) openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return kv.NewMemoryStore(), nil
	case config.StoreSQLite:
		store, err := kv.OpenSQLite(cfg.SQLitePath, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorePostgres:
		store, err := kv.OpenPostgres(&kv.Credentials{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
		}, cfg.Namespace)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreRedis:
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return kv.NewRedisStore(client, cfg.Namespace), nil
	case config.StoreMongo:
		db, err := kv.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		store := kv.NewMongoStore(db, cfg.Namespace)
		if err := store.CreateIndexes(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}

func (b *backends) openBus(ctx context.Context, cfg *config.Config, log zerolog.Logger) (notify.Bus, error) {
	switch cfg.Bus {
	case config.BusMemory:
		if cfg.IsolatedBus() {
			log.Warn().Str("store", string(cfg.Store)).
				Msg("shared store with memory bus: other processes' changes are not picked up until restart, set BUS_BACKEND=redis")
		}
		return notify.NewHub().Connect(), nil
	case config.BusRedis:
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		bus, err := notify.NewRedisBus(ctx, client, cfg.Namespace, log)
		if err != nil {
			return nil, err
		}
		return bus, nil
	}
	return nil, fmt.Errorf("unknown bus backend %q", cfg.Bus)
}

// close shuts the bus down before the store; a redis store closes the shared
// client itself.
func (b *backends) close(log zerolog.Logger) {
	if b.bus != nil {
		if err := b.bus.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close change bus")
		}
	}
	if b.store != nil {
		if err := b.store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}
	if _, ownsClient := b.store.(*kv.RedisStore); b.redis != nil && !ownsClient {
		if err := b.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis client")
		}
	}
}
