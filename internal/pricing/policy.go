// Package pricing computes shipping cost and tax for an order. The policy is
// pluggable so deployments can swap in carrier- or region-specific logic.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-api/internal/domain/order"
)

// FlatRateConfig configures the default policy.
type FlatRateConfig struct {
	// ShippingCost is charged when the subtotal is below FreeShippingOver.
	ShippingCost decimal.Decimal
	// FreeShippingOver waives shipping at or above this subtotal.
	// A zero value means shipping is always charged.
	FreeShippingOver decimal.Decimal
	// TaxRate is the fraction of the subtotal charged as tax, e.g. 0.08.
	TaxRate decimal.Decimal
}

var _ order.PricingPolicy = (*FlatRate)(nil)

// FlatRate is the default policy: flat shipping with a free-shipping
// threshold plus a percentage tax on the subtotal. Amounts are rounded to
// two decimal places at this boundary so downstream arithmetic is exact.
type FlatRate struct {
	cfg FlatRateConfig
}

// NewFlatRate creates a FlatRate policy.
func NewFlatRate(cfg FlatRateConfig) *FlatRate {
	return &FlatRate{cfg: cfg}
}

// Compute implements order.PricingPolicy.
func (f *FlatRate) Compute(items []order.LineItem, _ order.ShippingAddress) (decimal.Decimal, decimal.Decimal, error) {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	shipping := f.cfg.ShippingCost
	if f.cfg.FreeShippingOver.IsPositive() && subtotal.GreaterThanOrEqual(f.cfg.FreeShippingOver) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(f.cfg.TaxRate).Round(2)

	return shipping.Round(2), tax, nil
}
