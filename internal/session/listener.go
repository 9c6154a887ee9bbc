package session

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/notify"
)

// Listener mirrors session changes made by other processes of the same
// namespace. It is the only cross-process consistency mechanism: there is no
// polling.
type Listener struct {
	store   *Store
	timeout time.Duration
	stop    func()
}

// Listen subscribes to token and profile changes and reloads the store on each.
func Listen(bus notify.Bus, store *Store, timeout time.Duration) *Listener {
	l := &Listener{store: store, timeout: timeout}
	l.stop = notify.Watch(bus, []string{domain.KeyAuthToken, domain.KeyUser}, l.onChange)
	return l
}

func (l *Listener) onChange(c notify.Change) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	l.store.logger.Debug().Str("key", c.Key).Bool("deleted", c.Deleted).Str("origin", c.Origin).Msg("session changed elsewhere, reloading")
	l.store.Reload(ctx)
}

func (l *Listener) Stop() {
	l.stop()
}
