package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// transitions is the complete set of legal status transitions. Cancellation
// is only reachable while the goods have not shipped, so cancelling never
// credits stock for items already in transit.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransition reports whether from → to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMethod enumerates the accepted payment methods.
type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentPaypal         PaymentMethod = "paypal"
	PaymentCashOnDelivery PaymentMethod = "cash-on-delivery"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentPaypal, PaymentCashOnDelivery:
		return true
	}
	return false
}

// LineItem is one line of an order. Quantity and UnitPrice are snapshots
// captured at reservation time; later catalog changes never alter them.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ShippingAddress is the destination for an order. All fields are required.
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// Complete reports whether every address field is set.
func (a ShippingAddress) Complete() bool {
	return a.Street != "" && a.City != "" && a.State != "" &&
		a.PostalCode != "" && a.Country != "" && a.Phone != ""
}

// TotalEpsilon is the maximum tolerated difference between Total and
// Subtotal + ShippingCost + Tax.
var TotalEpsilon = decimal.RequireFromString("0.01")

// Order is the order aggregate. Line items are fixed at creation; the only
// mutation after creation is a status transition, guarded by Version.
type Order struct {
	ID              string
	UserID          string
	LineItems       []LineItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	Status          Status
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Version         int64
	CreatedAt       time.Time
	DeliveredAt     *time.Time
}

// TotalConsistent reports whether the money invariant
// Total == Subtotal + ShippingCost + Tax holds within TotalEpsilon.
func (o *Order) TotalConsistent() bool {
	sum := o.Subtotal.Add(o.ShippingCost).Add(o.Tax)
	return o.Total.Sub(sum).Abs().LessThan(TotalEpsilon)
}

// Repository defines persistence operations for orders.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)

	// CompareAndSetStatus commits a status transition only if the stored
	// version still equals expectedVersion, bumping the version on success.
	// deliveredAt is written when non-nil. It reports whether the update
	// applied; false with a nil error means a concurrent writer won.
	CompareAndSetStatus(ctx context.Context, id string, expectedVersion int64, status Status, deliveredAt *time.Time) (bool, error)

	Delete(ctx context.Context, id string) error
}
