package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store owns the cart of one storefront process. Every mutation is written
// through to the kv store; a failed write is logged and the in-memory cart
// stays authoritative.
type Store struct {
	mu    sync.RWMutex
	items []domain.CartItem

	kv     kv.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore hydrates the cart from kv. Missing or corrupt data yields an empty cart.
func NewStore(ctx context.Context, store kv.Store, logger zerolog.Logger) *Store {
	s := &Store{
		kv:     store,
		logger: logger.With().Str("component", "cart").Logger(),
		now:    time.Now,
	}
	items, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("cart read failed, starting empty")
	}
	s.items = items
	return s
}

// AddItem merges into the line with the same product, size and color, or
// appends a new line with the product's prices as of now.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int, size, color string) {
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.VariantKey(product.ID, size, color)
	for i := range s.items {
		if s.items[i].VariantKey() == key {
			s.items[i].Quantity += quantity
			s.persist(ctx)
			return
		}
	}

	s.items = append(s.items, domain.CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		Image:     product.Image,
		Quantity:  quantity,
		UnitPrice: product.Price,
		SalePrice: product.SalePrice,
		Size:      size,
		Color:     color,
		AddedAt:   s.now(),
	})
	s.persist(ctx)
}

// RemoveItem drops every line of productID with the given size, whatever its color.
func (s *Store) RemoveItem(ctx context.Context, productID int64, size string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0:0]
	for _, item := range s.items {
		if !item.Matches(productID, size) {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(s.items) {
		return
	}
	s.items = kept
	s.persist(ctx)
}

// UpdateQuantity sets the quantity of the matching lines. Quantities below
// one are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, size string, quantity int) {
	if quantity < 1 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i := range s.items {
		if s.items[i].Matches(productID, size) && s.items[i].Quantity != quantity {
			s.items[i].Quantity = quantity
			changed = true
		}
	}
	if changed {
		s.persist(ctx)
	}
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = []domain.CartItem{}
	s.persist(ctx)
}

// RemoveOrdered takes the ordered quantities off their lines and drops lines
// that reach zero. Lines added or grown after the snapshot was taken keep the
// difference.
func (s *Store) RemoveOrdered(ctx context.Context, ordered []domain.CartItem) {
	take := make(map[string]int, len(ordered))
	for _, item := range ordered {
		take[item.VariantKey()] += item.Quantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0:0]
	changed := false
	for _, item := range s.items {
		if n, ok := take[item.VariantKey()]; ok {
			changed = true
			item.Quantity -= n
			if item.Quantity < 1 {
				continue
			}
		}
		kept = append(kept, item)
	}
	if !changed {
		return
	}
	s.items = kept
	s.persist(ctx)
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CartItem{}, s.items...)
}

func (s *Store) TotalItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

func (s *Store) Subtotal() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// TotalPrice is the subtotal; shipping and tax are settled by the backend.
func (s *Store) TotalPrice() decimal.Decimal {
	return s.Subtotal()
}

// Reload replaces the in-memory cart with the persisted one. When the read
// fails the current cart is kept. mu is held across the read so a local
// mutation cannot land between it and the swap.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("cart reload failed")
		return
	}
	s.items = items
}

// load returns an empty cart for missing or corrupt data; only read failures
// are reported.
func (s *Store) load(ctx context.Context) ([]domain.CartItem, error) {
	raw, err := s.kv.Get(ctx, domain.KeyCart)
	if errors.Is(err, kv.ErrNotFound) {
		return []domain.CartItem{}, nil
	}
	if err != nil {
		return []domain.CartItem{}, err
	}

	var items []domain.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn().Err(err).Msg("stored cart is corrupt, starting empty")
		return []domain.CartItem{}, nil
	}

	valid := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		valid = append(valid, item)
	}
	return valid, nil
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context) {
	data, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error().Err(err).Msg("cart marshal failed")
		return
	}
	if err := s.kv.Set(ctx, domain.KeyCart, string(data)); err != nil {
		s.logger.Error().Err(err).Int("items", len(s.items)).Msg("cart write failed, keeping in-memory cart")
	}
}
