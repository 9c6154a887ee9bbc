package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub connects in-process buses, one per simulated process.
type Hub struct {
	mu    sync.RWMutex
	buses map[string]*MemoryBus
}

func NewHub() *Hub {
	return &Hub{buses: make(map[string]*MemoryBus)}
}

// Connect returns a bus with a fresh origin.
func (h *Hub) Connect() *MemoryBus {
	b := &MemoryBus{
		hub:      h,
		origin:   uuid.NewString(),
		registry: newRegistry(),
		queue:    make(chan Change, 64),
		done:     make(chan struct{}),
	}
	h.mu.Lock()
	h.buses[b.origin] = b
	h.mu.Unlock()

	b.wg.Add(1)
	go b.deliverLoop()
	return b
}

func (h *Hub) broadcast(change Change) {
	h.mu.RLock()
	targets := make([]*MemoryBus, 0, len(h.buses))
	for origin, b := range h.buses {
		if origin != change.Origin {
			targets = append(targets, b)
		}
	}
	h.mu.RUnlock()

	for _, b := range targets {
		b.enqueue(change)
	}
}

func (h *Hub) remove(origin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.buses, origin)
}

// MemoryBus delivers changes asynchronously, in publish order, on its own
// goroutine so that a subscriber may take locks held by the publisher.
type MemoryBus struct {
	hub      *Hub
	origin   string
	registry *registry
	queue    chan Change

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

func (b *MemoryBus) Origin() string {
	return b.origin
}

func (b *MemoryBus) Publish(ctx context.Context, change Change) error {
	select {
	case <-b.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	change.Origin = b.origin
	b.hub.broadcast(change)
	return nil
}

func (b *MemoryBus) Subscribe(key string, fn func(Change)) func() {
	return b.registry.add(key, fn)
}

func (b *MemoryBus) Close() error {
	b.closeOnce.Do(func() {
		b.hub.remove(b.origin)
		close(b.done)
	})
	b.wg.Wait()
	return nil
}

func (b *MemoryBus) enqueue(change Change) {
	select {
	case b.queue <- change:
	case <-b.done:
	}
}

func (b *MemoryBus) deliverLoop() {
	defer b.wg.Done()
	for {
		select {
		case change := <-b.queue:
			b.registry.dispatch(change)
		case <-b.done:
			return
		}
	}
}
