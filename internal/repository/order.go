package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-api/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, user_id, line_items, shipping, payment_method, status, subtotal, shipping_cost, tax, total, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	orderColumns = `id, user_id, line_items, shipping, payment_method, status,
		subtotal, shipping_cost, tax, total, version, created_at, delivered_at`

	findOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`

	// Optimistic concurrency: the version guard rejects the write when a
	// concurrent transition committed first.
	casStatusSQL = `UPDATE orders
		SET status = $3, version = version + 1, delivered_at = COALESCE($4, delivered_at)
		WHERE id = $1 AND version = $2`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Insert persists a new order. Line items and the shipping address are
// serialized to JSON for storage in JSONB columns.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.LineItems)
	if err != nil {
		return fmt.Errorf("marshaling line items: %w", err)
	}
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, itemsJSON, shippingJSON, string(o.PaymentMethod), string(o.Status),
		o.Subtotal, o.ShippingCost, o.Tax, o.Total, o.Version, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	return nil
}

// FindByID returns a single order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, findOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the orders owned by userID, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns every order, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// CompareAndSetStatus commits a status transition guarded by the version
// column. It reports whether the update applied.
func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, id string, expectedVersion int64, status order.Status, deliveredAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, casStatusSQL, id, expectedVersion, string(status), deliveredAt)
	if err != nil {
		return false, fmt.Errorf("updating status for order %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the order record.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deleteOrderSQL, id); err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		itemsJSON    []byte
		shippingJSON []byte
		payment      string
		status       string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &shippingJSON, &payment, &status,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total, &o.Version, &o.CreatedAt, &o.DeliveredAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(itemsJSON, &o.LineItems); err != nil {
		return o, fmt.Errorf("unmarshaling line items: %w", err)
	}
	if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
		return o, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	o.PaymentMethod = order.PaymentMethod(payment)
	o.Status = order.Status(status)
	return o, nil
}
