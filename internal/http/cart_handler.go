package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	cart    *cart.Store
	timeout time.Duration
}

func NewCartHandler(cart *cart.Store, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64        `json:"product_id"`
	Name      string       `json:"name"`
	Image     string       `json:"image"`
	Price     domain.Price `json:"price"`
	SalePrice domain.Price `json:"sale_price"`
	Quantity  int          `json:"quantity"`
	Size      string       `json:"size"`
	Color     string       `json:"color"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
	Total      decimal.Decimal   `json:"total"`
}

func (h *CartHandler) snapshot() CartResponseDTO {
	return CartResponseDTO{
		Items:      h.cart.Items(),
		TotalItems: h.cart.TotalItemCount(),
		Subtotal:   h.cart.Subtotal(),
		Total:      h.cart.TotalPrice(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	// Parse request body
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Validate request
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product := domain.Product{
		ID:        req.ProductID,
		Name:      req.Name,
		Image:     req.Image,
		Price:     req.Price,
		SalePrice: req.SalePrice,
	}
	h.cart.AddItem(ctx, product, req.Quantity, req.Size, req.Color)

	respondJSON(w, http.StatusCreated, h.snapshot())
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	h.cart.UpdateQuantity(ctx, productID, r.URL.Query().Get("size"), req.Quantity)

	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	h.cart.RemoveItem(ctx, productID, r.URL.Query().Get("size"))

	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.cart.Clear(ctx)

	respondJSON(w, http.StatusOK, h.snapshot())
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
