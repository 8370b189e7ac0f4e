// Package product defines the read-only catalog: items, their optional
// discounts, and the repository contract for looking them up.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. A product may
// carry a temporary discounted price; DiscountActive controls whether the
// discount is honoured.
type Product struct {
	ID             string
	Name           string
	BasePrice      decimal.Decimal
	DiscountPrice  *decimal.Decimal
	DiscountActive bool
	Category       string
	Image          Image
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
