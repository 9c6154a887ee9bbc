// Package notify carries key change notifications between storefront processes
// sharing one namespace. A process never hears about its own writes.
package notify

import (
	"context"
	"errors"
	"sync"
)

type Change struct {
	Key      string `json:"key"`
	NewValue string `json:"new_value,omitempty"`
	Deleted  bool   `json:"deleted,omitempty"`
	Origin   string `json:"origin"`
}

type Bus interface {
	// Publish stamps the change with this process' origin and fans it out.
	Publish(ctx context.Context, change Change) error
	// Subscribe registers fn for changes of key made by other processes.
	Subscribe(key string, fn func(Change)) (unsubscribe func())
	Origin() string
	Close() error
}

var ErrClosed = errors.New("bus closed")

type registry struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]func(Change)
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]map[int]func(Change))}
}

func (r *registry) add(key string, fn func(Change)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	if r.subs[key] == nil {
		r.subs[key] = make(map[int]func(Change))
	}
	r.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs[key], id)
		})
	}
}

func (r *registry) dispatch(change Change) {
	r.mu.RLock()
	fns := make([]func(Change), 0, len(r.subs[change.Key]))
	for _, fn := range r.subs[change.Key] {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

// Watch subscribes fn to every key and returns a function removing all
// subscriptions.
func Watch(bus Bus, keys []string, fn func(Change)) (stop func()) {
	unsubs := make([]func(), 0, len(keys))
	for _, k := range keys {
		unsubs = append(unsubs, bus.Subscribe(k, fn))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
