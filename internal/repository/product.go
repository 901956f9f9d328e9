package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, stock FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, stock FROM products WHERE id = $1`

	// The stock guard makes the decrement a compare-and-swap: it only applies
	// when the stored stock still equals the value the caller read. The CHECK
	// constraint on the column is the final backstop against negatives.
	decrementStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock = $3`

	incrementStockSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, stock)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// DecrementStock conditionally subtracts amount from the product's stock.
// It reports whether the update applied.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, amount, expected int) (bool, error) {
	tag, err := r.pool.Exec(ctx, decrementStockSQL, id, amount, expected)
	if err != nil {
		return false, fmt.Errorf("decrementing stock for %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementStock adds amount back to the product's stock.
func (r *ProductRepository) IncrementStock(ctx context.Context, id string, amount int) error {
	if _, err := r.pool.Exec(ctx, incrementStockSQL, id, amount); err != nil {
		return fmt.Errorf("incrementing stock for %q: %w", id, err)
	}
	return nil
}

// Upsert inserts or replaces a catalog row. Used by the seed tool.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.Stock); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.Stock)
	p.Price = price
	return p, err
}
