package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is the
// number of units currently available for reservation and is never negative.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Repository defines catalog operations. Stock is mutated exclusively through
// DecrementStock and IncrementStock; no other component writes it.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)

	// DecrementStock atomically subtracts amount from the product's stock,
	// but only if the stored stock still equals expected. It reports whether
	// the conditional update applied. A false return with a nil error means
	// a concurrent writer changed the stock first; callers re-read and retry.
	DecrementStock(ctx context.Context, id string, amount, expected int) (bool, error)

	// IncrementStock unconditionally adds amount back to the product's stock.
	// Used to release a reservation on cancellation or to compensate a
	// partially applied batch.
	IncrementStock(ctx context.Context, id string, amount int) error
}

// ValidID reports whether id is a syntactically acceptable product
// identifier: non-empty, at most 64 bytes, printable ASCII with no spaces.
func ValidID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7E {
			return false
		}
	}
	return true
}
