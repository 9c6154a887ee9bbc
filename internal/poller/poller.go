// Package poller consumes checkout-completed events and empties the cart of
// the user whose order went through.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const Topic = "checkout-outbox"

type Cart interface {
	Clear(ctx context.Context)
}

type Session interface {
	User() *domain.User
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Poller struct {
	cart    Cart
	session Session
	reader  messageReader
	logger  zerolog.Logger
	backoff time.Duration
}

// NewPoller reads with its own consumer group per namespace so every
// storefront namespace sees every event.
func NewPoller(cart Cart, session Session, logger zerolog.Logger, namespace string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  "storefront-" + namespace,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{
		cart:    cart,
		session: session,
		reader:  reader,
		logger:  logger.With().Str("component", "poller").Logger(),
		backoff: time.Second,
	}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error().Err(err).Msg("error reading message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}
		p.handle(ctx, m.Value)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error().Err(err).Msg("error closing reader")
	}
}

type checkoutEvent struct {
	CheckoutID string          `json:"checkout_id"`
	UserID     json.RawMessage `json:"user_id"`
}

// handle clears the cart when the event belongs to the logged-in user.
// Malformed events are logged and dropped.
func (p *Poller) handle(ctx context.Context, value []byte) {
	var event checkoutEvent
	if err := json.Unmarshal(value, &event); err != nil {
		p.logger.Warn().Err(err).Msg("error parsing message")
		return
	}
	userID, err := parseUserID(event.UserID)
	if err != nil {
		p.logger.Warn().Err(err).Str("checkout_id", event.CheckoutID).Msg("missing or invalid user_id")
		return
	}

	user := p.session.User()
	if user == nil || user.ID != userID {
		return
	}

	p.cart.Clear(ctx)
	p.logger.Info().Str("checkout_id", event.CheckoutID).Int64("user_id", userID).Msg("checkout completed, cart cleared")
}

// parseUserID accepts the id as a JSON number or a numeric string.
func parseUserID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("user_id absent")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(s, 10, 64)
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("user_id %s: %w", raw, err)
	}
	return n, nil
}
