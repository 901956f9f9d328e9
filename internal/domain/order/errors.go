package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	// ErrEmptyCart is returned when an order is created with no line items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden is returned when the actor may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConcurrentModification is returned when a status transition loses a
	// version race; the caller may re-read and retry.
	ErrConcurrentModification = errors.New("order modified concurrently")
	// ErrIncompleteAddress is returned when the shipping address is missing
	// required fields.
	ErrIncompleteAddress = errors.New("incomplete shipping address")
)

// InvalidPaymentMethodError indicates an unknown payment method.
type InvalidPaymentMethodError struct {
	Method PaymentMethod
}

func (e *InvalidPaymentMethodError) Error() string {
	return fmt.Sprintf("unknown payment method %q", e.Method)
}

// InvalidReferenceError indicates a syntactically invalid product identifier.
type InvalidReferenceError struct {
	ProductID string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid product reference %q", e.ProductID)
}

// ProductNotFoundError indicates a referenced product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a product cannot cover the requested
// quantity. Available is the stock observed at the failing check.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// IllegalTransitionError indicates a status transition outside the state table.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// TotalMismatchError indicates the caller-supplied total disagrees with the
// recomputed total beyond the tolerated epsilon.
type TotalMismatchError struct {
	Expected string
	Computed string
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("total mismatch: caller expected %s, computed %s", e.Expected, e.Computed)
}
