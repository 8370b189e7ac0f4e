// Package pricing resolves the authoritative unit price for catalog products
// and cart price snapshots.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/product"
)

// Effective resolves the unit price from a price snapshot. A discounted price
// is honoured only when the discount flag is set, the discounted price is
// present, and it is lower than the base price. The result never exceeds the
// base price. Absent or negative price data resolves to zero.
func Effective(base decimal.Decimal, discounted *decimal.Decimal, active bool) decimal.Decimal {
	if base.IsNegative() {
		base = decimal.Zero
	}
	if !active || discounted == nil {
		return base
	}
	if discounted.IsNegative() {
		return base
	}
	if discounted.LessThan(base) {
		return *discounted
	}
	return base
}

// EffectivePrice returns the unit price a customer currently pays for p.
func EffectivePrice(p product.Product) decimal.Decimal {
	return Effective(p.BasePrice, p.DiscountPrice, p.DiscountActive)
}

// Line pairs a resolved unit price with a quantity for subtotal calculation.
type Line struct {
	Unit     decimal.Decimal
	Quantity int
}

// Subtotal returns the sum of unit price times quantity across all lines.
// Lines with non-positive quantities contribute nothing.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		sum = sum.Add(l.Unit.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}
