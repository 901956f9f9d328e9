package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-api/internal/domain/auth"
	"github.com/xenking/storefront-api/internal/domain/order"
	"github.com/xenking/storefront-api/internal/domain/product"
	"github.com/xenking/storefront-api/internal/inventory"
	"github.com/xenking/storefront-api/internal/notify"
	"github.com/xenking/storefront-api/internal/pricing"
)

// --- In-memory fakes ---

type memProducts struct {
	mu       sync.Mutex
	products map[string]*product.Product
	listErr  error
}

func newMemProducts(products ...product.Product) *memProducts {
	byID := make(map[string]*product.Product, len(products))
	for i := range products {
		p := products[i]
		byID[p.ID] = &p
	}
	return &memProducts{products: byID}
}

func (m *memProducts) List(context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) DecrementStock(_ context.Context, id string, amount, expected int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok || p.Stock != expected || p.Stock < amount {
		return false, nil
	}
	p.Stock -= amount
	return true, nil
}

func (m *memProducts) IncrementStock(_ context.Context, id string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		p.Stock += amount
	}
	return nil
}

func (m *memProducts) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

type memOrders struct {
	mu   sync.Mutex
	byID map[string]*order.Order
}

func newMemOrders() *memOrders {
	return &memOrders{byID: make(map[string]*order.Order)}
}

func (m *memOrders) Insert(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrders) FindByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) List(context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrders) CompareAndSetStatus(_ context.Context, id string, expectedVersion int64, status order.Status, deliveredAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Version != expectedVersion {
		return false, nil
	}
	o.Status = status
	o.Version++
	if deliveredAt != nil {
		o.DeliveredAt = deliveredAt
	}
	return true, nil
}

func (m *memOrders) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

type memAPIKeys struct {
	byHash map[string]*auth.APIKey
}

func (m *memAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKey, error) {
	k, ok := m.byHash[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return k, nil
}

// --- Fixture ---

const testPepper = "test-pepper"

const (
	adminKey = "admin-secret"
	aliceKey = "alice-secret"
	bobKey   = "bob-secret"
)

func hashKey(key string) string {
	mac := hmac.New(sha256.New, []byte(testPepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type fixture struct {
	mux     *http.ServeMux
	catalog *memProducts
	orders  *memOrders
}

func newFixture(t *testing.T, products ...product.Product) *fixture {
	t.Helper()

	catalog := newMemProducts(products...)
	orders := newMemOrders()

	svc := order.NewService(
		orders,
		inventory.NewReserver(catalog),
		pricing.NewFlatRate(pricing.FlatRateConfig{
			ShippingCost:     decimal.RequireFromString("4.99"),
			FreeShippingOver: decimal.RequireFromString("50"),
			TaxRate:          decimal.RequireFromString("0.08"),
		}),
		notify.Nop{},
	)

	keys := &memAPIKeys{byHash: map[string]*auth.APIKey{
		hashKey(adminKey): {ID: "k1", KeyHash: hashKey(adminKey), Name: "ops", UserID: "staff", Scopes: []string{auth.ScopeAdmin}},
		hashKey(aliceKey): {ID: "k2", KeyHash: hashKey(aliceKey), Name: "alice", UserID: "alice"},
		hashKey(bobKey):   {ID: "k3", KeyHash: hashKey(bobKey), Name: "bob", UserID: "bob"},
	}}

	mux := http.NewServeMux()
	NewHandler(catalog, svc).Register(mux, NewSecurity(keys, []byte(testPepper)))

	return &fixture{mux: mux, catalog: catalog, orders: orders}
}

func (f *fixture) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func catalogProduct(id, price string, stock int) product.Product {
	return product.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
}

func validOrderBody(qty int) map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": "p1", "quantity": qty},
		},
		"shippingAddress": map[string]string{
			"street":     "1 Main St",
			"city":       "Springfield",
			"state":      "IL",
			"postalCode": "62701",
			"country":    "US",
			"phone":      "+1 555 0100",
		},
		"paymentMethod": "card",
	}
}

// --- Authentication ---

func TestSecurity_RejectsMissingOrUnknownKey(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	rec := f.do(t, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/products", "not-a-key", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSecurity_AcceptsBareAndBearerKey(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	rec := f.do(t, http.MethodGet, "/api/products", aliceKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", aliceKey)
	plain := httptest.NewRecorder()
	f.mux.ServeHTTP(plain, req)
	assert.Equal(t, http.StatusOK, plain.Code)
}

// --- Products ---

func TestListProducts(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	rec := f.do(t, http.MethodGet, "/api/products", aliceKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	products := decodeBody[[]productResponse](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, 10.00, products[0].Price)
	assert.Equal(t, 5, products[0].Stock)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/products/missing", aliceKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProducts_StorageFault(t *testing.T) {
	f := newFixture(t)
	f.catalog.listErr = errors.New("connection refused")

	rec := f.do(t, http.MethodGet, "/api/products", aliceKey, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody[errorResponse](t, rec)
	// Internal failure details never leak to the client.
	assert.Equal(t, "temporarily unavailable", body.Message)
}

// --- Orders ---

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	rec := f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(3))
	require.Equal(t, http.StatusCreated, rec.Code)

	o := decodeBody[orderResponse](t, rec)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "alice", o.UserID)
	assert.Equal(t, "pending", o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "p1", o.Items[0].ProductID)
	assert.Equal(t, 10.00, o.Items[0].UnitPrice)
	assert.Equal(t, 30.00, o.Subtotal)
	assert.Equal(t, 4.99, o.ShippingCost)
	assert.Equal(t, 2.40, o.Tax)
	assert.Equal(t, 37.39, o.Total)
	assert.Nil(t, o.DeliveredAt)

	assert.Equal(t, 2, f.catalog.stock("p1"))
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	body := validOrderBody(1)
	body["items"] = []map[string]any{}
	rec := f.do(t, http.MethodPost, "/api/orders", aliceKey, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_UnknownPaymentMethod(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	body := validOrderBody(1)
	body["paymentMethod"] = "bitcoin"
	rec := f.do(t, http.MethodPost, "/api/orders", aliceKey, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder_IncompleteAddress(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	body := validOrderBody(1)
	body["shippingAddress"] = map[string]string{"street": "1 Main St"}
	rec := f.do(t, http.MethodPost, "/api/orders", aliceKey, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// An input error is never disguised as a server fault.
	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, 5, f.catalog.stock("p1"))
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 2))

	rec := f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(3))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 2, f.catalog.stock("p1"))
}

func TestPlaceOrder_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(1))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceOrder_ExpectedTotalMismatch(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	body := validOrderBody(3)
	body["expectedTotal"] = 99.99
	rec := f.do(t, http.MethodPost, "/api/orders", aliceKey, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	// The aborted creation returned its reservation.
	assert.Equal(t, 5, f.catalog.stock("p1"))
}

func TestOrder_PriceSnapshotImmutable(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	created := decodeBody[orderResponse](t, f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(3)))
	require.Equal(t, 10.00, created.Items[0].UnitPrice)

	// A later catalog reprice must not alter the captured line items.
	f.catalog.mu.Lock()
	f.catalog.products["p1"].Price = decimal.RequireFromString("99.00")
	f.catalog.mu.Unlock()

	rec := f.do(t, http.MethodGet, "/api/orders/"+created.ID, aliceKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	fetched := decodeBody[orderResponse](t, rec)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, 10.00, fetched.Items[0].UnitPrice)
	assert.Equal(t, 30.00, fetched.Subtotal)
	assert.Equal(t, 37.39, fetched.Total)
}

func TestGetOrder_Permissions(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))

	created := decodeBody[orderResponse](t, f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(1)))

	rec := f.do(t, http.MethodGet, "/api/orders/"+created.ID, aliceKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/"+created.ID, adminKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/"+created.ID, bobKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders/missing", aliceKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 10))

	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(1)).Code)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/orders", bobKey, validOrderBody(1)).Code)

	own := decodeBody[[]orderResponse](t, f.do(t, http.MethodGet, "/api/orders", aliceKey, nil))
	require.Len(t, own, 1)
	assert.Equal(t, "alice", own[0].UserID)

	all := decodeBody[[]orderResponse](t, f.do(t, http.MethodGet, "/api/orders?all=true", adminKey, nil))
	assert.Len(t, all, 2)

	rec := f.do(t, http.MethodGet, "/api/orders?all=true", aliceKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))
	created := decodeBody[orderResponse](t, f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(1)))
	path := "/api/orders/" + created.ID + "/status"

	// Unknown status value.
	rec := f.do(t, http.MethodPut, path, adminKey, updateStatusRequest{Status: "refunded"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Skipping processing is illegal.
	rec = f.do(t, http.MethodPut, path, adminKey, updateStatusRequest{Status: "shipped"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Owners cannot advance the lifecycle.
	rec = f.do(t, http.MethodPut, path, aliceKey, updateStatusRequest{Status: "processing"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, path, adminKey, updateStatusRequest{Status: "processing"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", decodeBody[orderResponse](t, rec).Status)

	rec = f.do(t, http.MethodPut, path, adminKey, updateStatusRequest{Status: "shipped"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, path, adminKey, updateStatusRequest{Status: "delivered"})
	require.Equal(t, http.StatusOK, rec.Code)
	delivered := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "delivered", delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
}

func TestUpdateOrderStatus_OwnerCancelRestoresStock(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))
	created := decodeBody[orderResponse](t, f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(3)))
	require.Equal(t, 2, f.catalog.stock("p1"))

	rec := f.do(t, http.MethodPut, "/api/orders/"+created.ID+"/status", aliceKey, updateStatusRequest{Status: "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBody[orderResponse](t, rec).Status)
	assert.Equal(t, 5, f.catalog.stock("p1"))
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t, catalogProduct("p1", "10.00", 5))
	created := decodeBody[orderResponse](t, f.do(t, http.MethodPost, "/api/orders", aliceKey, validOrderBody(3)))

	rec := f.do(t, http.MethodDelete, "/api/orders/"+created.ID, aliceKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/orders/"+created.ID, adminKey, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Deletion is archival: the reserved stock stays consumed.
	assert.Equal(t, 2, f.catalog.stock("p1"))

	rec = f.do(t, http.MethodGet, "/api/orders/"+created.ID, adminKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
