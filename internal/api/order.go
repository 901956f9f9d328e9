package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type shippingAddressJSON struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type placeOrderRequest struct {
	Items           []orderItemRequest  `json:"items"`
	ShippingAddress shippingAddressJSON `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	// ExpectedTotal is optional; when present the server verifies it against
	// the recomputed total.
	ExpectedTotal *float64 `json:"expectedTotal,omitempty"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"userId"`
	Items           []orderItemResponse `json:"items"`
	ShippingAddress shippingAddressJSON `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	Status          string              `json:"status"`
	Subtotal        float64             `json:"subtotal"`
	ShippingCost    float64             `json:"shippingCost"`
	Tax             float64             `json:"tax"`
	Total           float64             `json:"total"`
	CreatedAt       time.Time           `json:"createdAt"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.LineItems))
	for i, it := range o.LineItems {
		items[i] = orderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
		}
	}
	return orderResponse{
		ID:     o.ID,
		UserID: o.UserID,
		Items:  items,
		ShippingAddress: shippingAddressJSON{
			Street:     o.ShippingAddress.Street,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
			Phone:      o.ShippingAddress.Phone,
		},
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		Subtotal:      o.Subtotal.InexactFloat64(),
		ShippingCost:  o.ShippingCost.InexactFloat64(),
		Tax:           o.Tax.InexactFloat64(),
		Total:         o.Total.InexactFloat64(),
		CreatedAt:     o.CreatedAt,
		DeliveredAt:   o.DeliveredAt,
	}
}

// PlaceOrder creates an order for the calling user: stock is reserved for
// every line or the request fails without side effects.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Code: 400, Message: "invalid request body"})
		return
	}
	if req.PaymentMethod == "" || !order.PaymentMethod(req.PaymentMethod).Valid() {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Code: 400, Message: "unknown payment method"})
		return
	}

	lines := make([]order.ReserveLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = order.ReserveLine{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	createReq := order.CreateRequest{
		UserID: actor.UserID,
		Lines:  lines,
		ShippingAddress: order.ShippingAddress{
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
			Phone:      req.ShippingAddress.Phone,
		},
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
	}
	if req.ExpectedTotal != nil {
		expected := decimal.NewFromFloat(*req.ExpectedTotal)
		createReq.ExpectedTotal = &expected
	}

	o, err := h.orders.Create(r.Context(), createReq)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

// GetOrder returns one order; only its owner or an administrator may read it.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	o, err := h.orders.Get(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// ListOrders returns the caller's orders, or every order for administrators
// requesting ?all=true.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	all := r.URL.Query().Get("all") == "true"
	orders, err := h.orders.ListForActor(r.Context(), actor, all)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	writeJSON(w, r, http.StatusOK, out)
}

// UpdateOrderStatus drives a status transition. Administrators may perform
// any legal transition; owners may only cancel a pending order.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Code: 400, Message: "invalid request body"})
		return
	}
	target := order.Status(req.Status)
	if !target.Valid() {
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Code: 400, Message: "unknown status"})
		return
	}

	o, err := h.orders.TransitionStatus(r.Context(), r.PathValue("id"), target, actor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// DeleteOrder removes an order record. Administrator-only; stock is never
// restored by deletion.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	if err := h.orders.Delete(r.Context(), r.PathValue("id"), actor); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
