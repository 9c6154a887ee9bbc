package kv

import (
	"context"
	"errors"
)

// Store is the durable string key-value storage shared by every storefront
// process of one namespace.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes all entries in one logical operation. Backends with
	// transactions apply it all-or-nothing.
	SetMany(ctx context.Context, entries map[string]string) error
	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

var (
	ErrNotFound      = errors.New("key not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)
