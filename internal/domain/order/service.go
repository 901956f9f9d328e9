package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/auth"
)

// Reserver is the inventory port the lifecycle drives. Reserve claims stock
// for every line or none; Release is the compensating increment used on
// cancellation.
type Reserver interface {
	Reserve(ctx context.Context, lines []ReserveLine) ([]ReservedItem, error)
	Release(ctx context.Context, lines []ReserveLine) error
}

// ReserveLine is one requested (product, quantity) pair.
type ReserveLine struct {
	ProductID string
	Quantity  int
}

// ReservedItem is the per-line snapshot returned by a successful reservation.
type ReservedItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// PricingPolicy computes shipping cost and tax for the order being created.
type PricingPolicy interface {
	Compute(items []LineItem, addr ShippingAddress) (shippingCost, tax decimal.Decimal, err error)
}

// Notifier is the best-effort event side channel. Implementations must not
// block the caller and must never report failure.
type Notifier interface {
	Publish(ctx context.Context, event string, o *Order)
}

// Event names emitted by the service.
const (
	EventCreated = "order.created"
	EventUpdated = "order.updated"
	EventDeleted = "order.deleted"
)

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	UserID          string
	Lines           []ReserveLine
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	// ExpectedTotal, when non-nil, is the total the caller computed client
	// side. A disagreement with the recomputed total beyond TotalEpsilon
	// fails the creation with TotalMismatchError.
	ExpectedTotal *decimal.Decimal
}

// Service drives the order lifecycle: creation with inventory reservation,
// status transitions, reads, and administrative deletion.
type Service struct {
	orders    Repository
	inventory Reserver
	pricing   PricingPolicy
	notifier  Notifier
	now       func() time.Time
}

// NewService creates a Service with the required collaborators.
func NewService(orders Repository, inventory Reserver, pricing PricingPolicy, notifier Notifier) *Service {
	return &Service{
		orders:    orders,
		inventory: inventory,
		pricing:   pricing,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Create reserves stock for the cart, prices the order, and persists it in
// status pending. On any failure no order is persisted and no stock stays
// reserved. The order-created event is fire-and-forget.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if !req.PaymentMethod.Valid() {
		return nil, &InvalidPaymentMethodError{Method: req.PaymentMethod}
	}
	if !req.ShippingAddress.Complete() {
		return nil, ErrIncompleteAddress
	}

	reserved, err := s.inventory.Reserve(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	items := make([]LineItem, len(reserved))
	subtotal := decimal.Zero
	for i, r := range reserved {
		items[i] = LineItem{
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			UnitPrice: r.UnitPrice,
		}
		subtotal = subtotal.Add(r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shippingCost, tax, err := s.pricing.Compute(items, req.ShippingAddress)
	if err != nil {
		s.compensate(ctx, req.Lines)
		return nil, errors.Wrap(err, "compute shipping and tax")
	}
	total := subtotal.Add(shippingCost).Add(tax).Round(2)

	if req.ExpectedTotal != nil && total.Sub(*req.ExpectedTotal).Abs().GreaterThanOrEqual(TotalEpsilon) {
		s.compensate(ctx, req.Lines)
		return nil, &TotalMismatchError{
			Expected: req.ExpectedTotal.StringFixed(2),
			Computed: total.StringFixed(2),
		}
	}

	o := &Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		LineItems:       items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          StatusPending,
		Subtotal:        subtotal,
		ShippingCost:    shippingCost,
		Tax:             tax,
		Total:           total,
		Version:         1,
		CreatedAt:       s.now(),
	}
	if !o.TotalConsistent() {
		s.compensate(ctx, req.Lines)
		return nil, &TotalMismatchError{
			Expected: subtotal.Add(shippingCost).Add(tax).StringFixed(2),
			Computed: total.StringFixed(2),
		}
	}

	if err := s.orders.Insert(ctx, o); err != nil {
		s.compensate(ctx, req.Lines)
		return nil, errors.Wrap(err, "insert order")
	}

	s.notifier.Publish(ctx, EventCreated, o)
	return o, nil
}

// compensate returns reserved stock when creation fails after the
// reservation already applied.
func (s *Service) compensate(ctx context.Context, lines []ReserveLine) {
	_ = s.inventory.Release(ctx, lines)
}

// Get returns the order when the actor is its owner or an administrator.
func (s *Service) Get(ctx context.Context, id string, actor auth.Actor) (*Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Admin() && !actor.Owns(o.UserID) {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListForActor returns the actor's own orders, or every order when the actor
// is an administrator and all is set.
func (s *Service) ListForActor(ctx context.Context, actor auth.Actor, all bool) ([]Order, error) {
	if all {
		if !actor.Admin() {
			return nil, ErrForbidden
		}
		return s.orders.List(ctx)
	}
	return s.orders.ListByUser(ctx, actor.UserID)
}

// TransitionStatus moves the order to target if the transition is legal and
// the actor is permitted. Administrators may perform any legal transition;
// the owner may only cancel while the order is still pending. Cancellation
// releases reserved stock before the status commits; delivery stamps
// DeliveredAt. A lost version race returns ErrConcurrentModification.
func (s *Service) TransitionStatus(ctx context.Context, id string, target Status, actor auth.Actor) (*Order, error) {
	if !target.Valid() {
		return nil, &IllegalTransitionError{From: "", To: target}
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.Admin() {
		ownerCancel := actor.Owns(o.UserID) && target == StatusCancelled && o.Status == StatusPending
		if !ownerCancel {
			return nil, ErrForbidden
		}
	}

	if !CanTransition(o.Status, target) {
		return nil, &IllegalTransitionError{From: o.Status, To: target}
	}

	var deliveredAt *time.Time
	if target == StatusDelivered {
		now := s.now()
		deliveredAt = &now
	}

	// Commit the transition first: the version guard makes the transition,
	// and therefore the release below, happen at most once per order.
	applied, err := s.orders.CompareAndSetStatus(ctx, o.ID, o.Version, target, deliveredAt)
	if err != nil {
		return nil, errors.Wrap(err, "commit status")
	}
	if !applied {
		return nil, ErrConcurrentModification
	}

	if target == StatusCancelled {
		lines := make([]ReserveLine, len(o.LineItems))
		for i, it := range o.LineItems {
			lines[i] = ReserveLine{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		if err := s.inventory.Release(ctx, lines); err != nil {
			return nil, errors.Wrap(err, "release stock")
		}
	}

	o.Status = target
	o.Version++
	o.DeliveredAt = deliveredAt

	s.notifier.Publish(ctx, EventUpdated, o)
	return o, nil
}

// Delete removes the order record. It is administrator-only and archival:
// stock is never restored, whatever the order's status. Cancellation is the
// only path that returns stock.
func (s *Service) Delete(ctx context.Context, id string, actor auth.Actor) error {
	if !actor.Admin() {
		return ErrForbidden
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.orders.Delete(ctx, o.ID); err != nil {
		return errors.Wrap(err, "delete order")
	}

	s.notifier.Publish(ctx, EventDeleted, o)
	return nil
}
