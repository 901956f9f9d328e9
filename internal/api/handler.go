// Package api exposes the order and catalog services over REST.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
)

// Handler holds the HTTP handlers for the API surface, delegating business
// logic to the order service and the product repository.
type Handler struct {
	products product.Repository
	orders   *order.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(products product.Repository, orders *order.Service) *Handler {
	return &Handler{
		products: products,
		orders:   orders,
	}
}

// Register attaches all API routes to mux. Every route runs behind sec,
// which authenticates the API key and stores the actor in the context.
func (h *Handler) Register(mux *http.ServeMux, sec *Security) {
	protect := sec.Require

	mux.Handle("GET /api/products", protect(http.HandlerFunc(h.ListProducts)))
	mux.Handle("GET /api/products/{id}", protect(http.HandlerFunc(h.GetProduct)))

	mux.Handle("POST /api/orders", protect(http.HandlerFunc(h.PlaceOrder)))
	mux.Handle("GET /api/orders", protect(http.HandlerFunc(h.ListOrders)))
	mux.Handle("GET /api/orders/{id}", protect(http.HandlerFunc(h.GetOrder)))
	mux.Handle("PUT /api/orders/{id}/status", protect(http.HandlerFunc(h.UpdateOrderStatus)))
	mux.Handle("DELETE /api/orders/{id}", protect(http.HandlerFunc(h.DeleteOrder)))
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}
