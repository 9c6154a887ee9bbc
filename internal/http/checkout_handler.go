package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/rs/zerolog"
)

type CheckoutHandler struct {
	service *checkout.Service
	timeout time.Duration
}

func NewCheckoutHandler(service *checkout.Service, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		timeout: timeout,
	}
}

type InitiateCheckoutRequestDTO struct {
	IdempotencyKey  string                   `json:"idempotency_key"`
	ShippingAddress checkout.ShippingAddress `json:"shipping_address"`
}

type CheckoutResponseDTO struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req InitiateCheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.service.PlaceOrder(ctx, req.ShippingAddress, req.IdempotencyKey)
	if err != nil {
		handleError(w, err)
		return
	}

	if u := getUserFromContext(r.Context()); u != nil {
		zerolog.Ctx(r.Context()).Info().Int64("user_id", u.ID).Int64("order_id", order.ID).Msg("checkout submitted")
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		OrderID: order.ID,
		Status:  order.Status,
	})
}
