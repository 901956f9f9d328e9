// Package inventory implements all-or-nothing stock reservation over the
// product catalog. It is the only component that mutates product stock.
package inventory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
)

// casRetries bounds how many times a single line's conditional decrement is
// retried with a freshly read stock value before the batch fails.
const casRetries = 3

var _ order.Reserver = (*Reserver)(nil)

// Reserver validates and reserves stock for a batch of lines.
type Reserver struct {
	catalog product.Repository
}

// NewReserver creates a Reserver over the given catalog.
func NewReserver(catalog product.Repository) *Reserver {
	return &Reserver{catalog: catalog}
}

// Reserve decrements stock for every line or for none of them, returning the
// price snapshots that become the order's immutable line-item pricing.
//
// It runs in two phases. The validation phase reads every product and checks
// identifiers, existence, and sufficiency against the current stock without
// mutating anything, so a batch that cannot succeed leaves no trace. The
// apply phase then issues a conditional decrement per line, guarded by the
// stock value read immediately before it; a lost race re-reads and retries
// up to casRetries times. If a line still cannot be reserved, every
// decrement already applied in this batch is compensated before the error
// returns.
func (r *Reserver) Reserve(ctx context.Context, lines []order.ReserveLine) ([]order.ReservedItem, error) {
	if len(lines) == 0 {
		return nil, order.ErrEmptyCart
	}

	// Validation phase: no mutation until every line checks out.
	reserved := make([]order.ReservedItem, len(lines))
	for i, ln := range lines {
		if !product.ValidID(ln.ProductID) {
			return nil, &order.InvalidReferenceError{ProductID: ln.ProductID}
		}
		if ln.Quantity < 1 {
			return nil, &order.InvalidQuantityError{ProductID: ln.ProductID}
		}

		p, err := r.catalog.GetByID(ctx, ln.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, &order.ProductNotFoundError{ProductID: ln.ProductID}
			}
			return nil, errors.Wrapf(err, "get product %s", ln.ProductID)
		}
		if ln.Quantity > p.Stock {
			return nil, &order.InsufficientStockError{
				ProductID: ln.ProductID,
				Requested: ln.Quantity,
				Available: p.Stock,
			}
		}

		reserved[i] = order.ReservedItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  ln.Quantity,
		}
	}

	// Apply phase: conditional decrements, compensating on failure.
	for i, ln := range lines {
		if err := r.reserveOne(ctx, ln); err != nil {
			r.rollback(ctx, lines[:i])
			return nil, err
		}
	}

	return reserved, nil
}

// reserveOne applies a single conditional decrement, re-reading the stock
// after every lost race. Concurrent batches over the same product therefore
// cannot both succeed when their combined quantity exceeds stock.
func (r *Reserver) reserveOne(ctx context.Context, ln order.ReserveLine) error {
	available := 0
	for attempt := 0; attempt <= casRetries; attempt++ {
		p, err := r.catalog.GetByID(ctx, ln.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return &order.ProductNotFoundError{ProductID: ln.ProductID}
			}
			return errors.Wrapf(err, "get product %s", ln.ProductID)
		}
		available = p.Stock
		if ln.Quantity > p.Stock {
			return &order.InsufficientStockError{
				ProductID: ln.ProductID,
				Requested: ln.Quantity,
				Available: p.Stock,
			}
		}

		applied, err := r.catalog.DecrementStock(ctx, ln.ProductID, ln.Quantity, p.Stock)
		if err != nil {
			return errors.Wrapf(err, "decrement stock for %s", ln.ProductID)
		}
		if applied {
			return nil
		}
	}

	// Retry budget spent under sustained contention.
	return &order.InsufficientStockError{
		ProductID: ln.ProductID,
		Requested: ln.Quantity,
		Available: available,
	}
}

// rollback returns stock for lines whose decrement already applied. A failed
// compensation leaves stock under-counted until reconciled, so it is logged;
// the remaining lines are still compensated.
func (r *Reserver) rollback(ctx context.Context, applied []order.ReserveLine) {
	for _, ln := range applied {
		if err := r.catalog.IncrementStock(ctx, ln.ProductID, ln.Quantity); err != nil {
			zctx.From(ctx).Error("stock compensation failed",
				zap.String("product_id", ln.ProductID),
				zap.Int("quantity", ln.Quantity),
				zap.Error(err),
			)
		}
	}
}

// Release returns previously reserved stock, line by line. Idempotence is the
// caller's responsibility: the order lifecycle only invokes Release inside a
// version-guarded cancellation, so a given order releases at most once.
func (r *Reserver) Release(ctx context.Context, lines []order.ReserveLine) error {
	for _, ln := range lines {
		if err := r.catalog.IncrementStock(ctx, ln.ProductID, ln.Quantity); err != nil {
			return errors.Wrapf(err, "release stock for %s", ln.ProductID)
		}
	}
	return nil
}
