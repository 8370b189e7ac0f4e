package promo

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// discountFor calculates the discount amount for the given code against a
// cart subtotal. Both branches are capped at the subtotal so the discount
// never exceeds what is being paid: fixed codes larger than the cart and
// percentage codes with value over 100 both discount the full subtotal, no
// more.
func discountFor(c *Code, subtotal decimal.Decimal) (decimal.Decimal, error) {
	switch c.DiscountType {
	case DiscountPercentage:
		amount := decimal.Min(subtotal.Mul(c.Value).Div(hundred), subtotal)
		return floorAtZero(amount).Round(2), nil
	case DiscountFixed:
		amount := decimal.Min(c.Value, subtotal)
		return floorAtZero(amount).Round(2), nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
}

// finalTotal returns subtotal minus discount, floored at zero.
func finalTotal(subtotal, discount decimal.Decimal) decimal.Decimal {
	return floorAtZero(subtotal.Sub(discount)).Round(2)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
