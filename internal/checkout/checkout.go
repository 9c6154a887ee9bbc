// Package checkout submits the cart as an order to the backend.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const OrdersPath = "/api/orders/"

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type orderLine struct {
	ProductID int64        `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Size      string       `json:"size,omitempty"`
	Color     string       `json:"color,omitempty"`
	Price     domain.Price `json:"price"`
}

type orderRequest struct {
	Items           []orderLine     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Subtotal        domain.Price    `json:"subtotal"`
}

type Order struct {
	ID     int64        `json:"id"`
	Status string       `json:"status"`
	Total  domain.Price `json:"total_price"`
}

type Cart interface {
	Items() []domain.CartItem
	Subtotal() decimal.Decimal
	RemoveOrdered(ctx context.Context, ordered []domain.CartItem)
}

type TokenProvider interface {
	GetValidToken(ctx context.Context) (string, error)
}

type Poster interface {
	Post(ctx context.Context, path string, body any, opts ...apiclient.RequestOption) apiclient.Result
}

type Service struct {
	cart    Cart
	session TokenProvider
	client  Poster
	logger  zerolog.Logger
}

func NewService(cart Cart, session TokenProvider, client Poster, logger zerolog.Logger) *Service {
	return &Service{
		cart:    cart,
		session: session,
		client:  client,
		logger:  logger.With().Str("component", "checkout").Logger(),
	}
}

// PlaceOrder posts the cart and removes the ordered lines once the backend
// accepted the order. Items added while the request was in flight stay in the
// cart. On failure the cart is left as it was. An empty idempotencyKey is
// replaced by a generated one.
func (s *Service) PlaceOrder(ctx context.Context, address ShippingAddress, idempotencyKey string) (*Order, error) {
	items := s.cart.Items()
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	token, err := s.session.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkout requires a session: %w", err)
	}

	req := orderRequest{
		Items:           make([]orderLine, 0, len(items)),
		ShippingAddress: address,
		Subtotal:        domain.NewPrice(s.cart.Subtotal()),
	}
	for _, item := range items {
		req.Items = append(req.Items, orderLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
			Price:     domain.NewPrice(item.EffectivePrice()),
		})
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	res := s.client.Post(ctx, OrdersPath, req,
		apiclient.WithHeader("Authorization", "Bearer "+token),
		apiclient.WithHeader("Idempotency-Key", idempotencyKey),
	)
	if !res.OK() {
		s.logger.Warn().Str("error", res.Error).Int("status", res.Status).Str("idempotency_key", idempotencyKey).Msg("order rejected")
		return nil, res.Err()
	}

	var order Order
	if err := res.Decode(&order); err != nil && !errors.Is(err, apiclient.ErrNoData) {
		s.logger.Warn().Err(err).Msg("order accepted but response unreadable")
	}

	s.cart.RemoveOrdered(ctx, items)
	s.logger.Info().Int64("order_id", order.ID).Int("lines", len(items)).Msg("order placed")
	return &order, nil
}
