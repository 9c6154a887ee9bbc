package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Handlers struct {
	Cart     *CartHandler
	Session  *SessionHandler
	Search   *SearchHandler
	Checkout *CheckoutHandler
	Bulk     *BulkUploadHandler
}

func NewRouter(h Handlers, logger zerolog.Logger, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.Session.GetSession)
			r.Post("/login", h.Session.Login)
			r.Post("/logout", h.Session.Logout)
			r.Post("/refresh", h.Session.Refresh)
			r.Get("/token", h.Session.Token)
		})
		r.Route("/searches", func(r chi.Router) {
			r.Get("/", h.Search.List)
			r.Post("/", h.Search.Record)
			r.Delete("/", h.Search.Clear)
		})
		r.With(RequireSession(h.Session.session)).Post("/checkout", h.Checkout.InitiateCheckout)
		r.With(RequireSession(h.Session.session)).Post("/products/bulk", h.Bulk.Upload)
	})

	return r
}
