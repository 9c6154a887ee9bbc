package kv

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in a map. A non-zero quota caps the total size of
// keys and values in bytes, the way browsers cap local storage.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
	quota   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func NewMemoryStoreWithQuota(quota int) *MemoryStore {
	s := NewMemoryStore()
	s.quota = quota
	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

func (s *MemoryStore) SetMany(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		size := 0
		for k, v := range s.entries {
			if _, replaced := entries[k]; !replaced {
				size += len(k) + len(v)
			}
		}
		for k, v := range entries {
			size += len(k) + len(v)
		}
		if size > s.quota {
			return ErrQuotaExceeded
		}
	}

	for k, v := range entries {
		s.entries[k] = v
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
