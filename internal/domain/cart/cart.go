// Package cart holds the customer's cart: price-snapshotted lines, the
// currently applied promo, and an optional in-flight payment session.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/pricing"
	"github.com/nilecart/storefront/internal/domain/promo"
)

var (
	// ErrNotFound is returned when no cart exists for the given ID.
	ErrNotFound = errors.New("cart not found")
	// ErrLineNotFound is returned when the cart has no line for the product.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrConcurrentUpdate is returned when a save lost a compare-and-set race.
	ErrConcurrentUpdate = errors.New("cart was modified concurrently")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Line is a cart line item with the product's price snapshot captured at
// add-to-cart time. Authoritative prices are re-read from the catalog at
// checkout; the snapshot only drives the cart view and promo reapplication.
type Line struct {
	ProductID      string           `json:"product_id"`
	Name           string           `json:"name"`
	Quantity       int              `json:"quantity"`
	BasePrice      decimal.Decimal  `json:"base_price"`
	DiscountPrice  *decimal.Decimal `json:"discount_price,omitempty"`
	DiscountActive bool             `json:"discount_active"`
}

// UnitPrice resolves the effective unit price from the line's snapshot.
func (l Line) UnitPrice() decimal.Decimal {
	return pricing.Effective(l.BasePrice, l.DiscountPrice, l.DiscountActive)
}

// Session records an in-flight payment-provider session. Exactly one session
// exists at a time; dispatching a new payment method replaces it wholesale.
type Session struct {
	Method      string          `json:"method"`
	OrderID     string          `json:"order_id,omitempty"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Cart is the customer's cart. Version implements optimistic concurrency in
// the store: a save only succeeds when the stored version still matches.
type Cart struct {
	ID        string            `json:"id"`
	Lines     []Line            `json:"lines"`
	Promo     *promo.Validation `json:"promo,omitempty"`
	Session   *Session          `json:"session,omitempty"`
	Version   int64             `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Subtotal recomputes the cart subtotal from the live lines. It is never
// cached across requests.
func (c *Cart) Subtotal() decimal.Decimal {
	lines := make([]pricing.Line, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = pricing.Line{Unit: l.UnitPrice(), Quantity: l.Quantity}
	}
	return pricing.Subtotal(lines)
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Total returns the payable total: the promo's final total when a promo is
// applied, the plain subtotal otherwise.
func (c *Cart) Total() decimal.Decimal {
	if c.Promo != nil {
		return c.Promo.FinalTotal
	}
	return c.Subtotal()
}

// lineIndex returns the index of the line for productID, or -1.
func (c *Cart) lineIndex(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Store defines persistence for carts. Save must fail with
// ErrConcurrentUpdate when the stored version no longer matches the version
// the cart was loaded with.
type Store interface {
	Get(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
}
