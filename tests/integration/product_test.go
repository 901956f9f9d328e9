//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts_NoAuth(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/products", nil, "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestListProducts(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/products", nil, customerKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 5 {
		t.Fatalf("expected 5 products, got %d", len(products))
	}
}

func TestGetProduct(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/products/P1", nil, customerKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	product := decodeJSON[productResponse](t, resp)
	if product.ID != "P1" {
		t.Errorf("id: got %q, want %q", product.ID, "P1")
	}
	if product.Name != "Walnut Desk Organizer" {
		t.Errorf("name: got %q, want %q", product.Name, "Walnut Desk Organizer")
	}
	if product.Price != 10 {
		t.Errorf("price: got %v, want 10", product.Price)
	}
	if product.Stock <= 0 {
		t.Errorf("stock: got %v, want > 0", product.Stock)
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/products/no-such-product", nil, customerKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	errResp := decodeJSON[errorResponse](t, resp)
	if errResp.Code != 404 {
		t.Errorf("error code: got %d, want 404", errResp.Code)
	}
}
