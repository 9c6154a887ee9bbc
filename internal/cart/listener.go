package cart

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/notify"
)

// Listen reloads the cart whenever another process rewrites it.
func Listen(bus notify.Bus, store *Store, timeout time.Duration) (stop func()) {
	return notify.Watch(bus, []string{domain.KeyCart}, func(c notify.Change) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		store.logger.Debug().Str("origin", c.Origin).Msg("cart changed elsewhere, reloading")
		store.Reload(ctx)
	})
}
