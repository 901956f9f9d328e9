// Command seed-db loads a product catalog from a JSON file (optionally
// gzip-compressed) and provisions an administrator API key.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-api/internal/domain/auth"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/repository"
)

const upsertWorkers = 8

type productJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func main() {
	var opts seedOptions
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.StringVar(&opts.productsFile, "products", "products.json", "Path to products JSON file (.gz supported)")
	flag.StringVar(&opts.adminKey, "admin-key", "", "Plaintext admin API key to provision (skipped when empty)")
	flag.StringVar(&opts.adminUserID, "admin-user", "admin", "User id the admin key belongs to")
	flag.StringVar(&opts.customerKey, "customer-key", "", "Plaintext customer API key to provision (skipped when empty)")
	flag.StringVar(&opts.customerUserID, "customer-user", "customer", "User id the customer key belongs to")
	flag.StringVar(&opts.pepper, "pepper", os.Getenv("STORE_API_KEY_PEPPER"), "HMAC pepper for API key hashing")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

type seedOptions struct {
	databaseURL    string
	productsFile   string
	adminKey       string
	adminUserID    string
	customerKey    string
	customerUserID string
	pepper         string
}

func run(ctx context.Context, opts seedOptions) error {
	if opts.databaseURL == "" {
		return errors.New("database URL is required")
	}

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	products, err := loadProducts(opts.productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}

	repo := repository.NewProductRepository(pool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)
	for _, p := range products {
		g.Go(func() error {
			return repo.Upsert(gctx, &product.Product{
				ID:    p.ID,
				Name:  p.Name,
				Price: p.Price,
				Stock: p.Stock,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	slog.Info("products seeded", "count", len(products))

	keys := repository.NewAPIKeyRepository(pool)
	if opts.adminKey != "" {
		if err := provisionKey(ctx, keys, opts.pepper, opts.adminKey, "admin", opts.adminUserID, []string{auth.ScopeAdmin}); err != nil {
			return errors.Wrap(err, "insert admin key")
		}
		slog.Info("admin api key provisioned", "user", opts.adminUserID)
	}
	if opts.customerKey != "" {
		if err := provisionKey(ctx, keys, opts.pepper, opts.customerKey, "customer", opts.customerUserID, nil); err != nil {
			return errors.Wrap(err, "insert customer key")
		}
		slog.Info("customer api key provisioned", "user", opts.customerUserID)
	}

	return nil
}

func provisionKey(ctx context.Context, keys *repository.APIKeyRepository, pepper, key, name, userID string, scopes []string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))

	return keys.Insert(ctx, &auth.APIKey{
		ID:      uuid.New().String(),
		KeyHash: hex.EncodeToString(mac.Sum(nil)),
		Name:    name,
		UserID:  userID,
		Scopes:  scopes,
	})
}

// loadProducts reads and decodes the products file, transparently
// decompressing .gz inputs.
func loadProducts(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer zr.Close()
		r = zr
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return products, nil
}
