// Package order defines the order record assembled at checkout and its
// persistence contract.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/currency"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// PaymentMethod enumerates the payment backends an order can be routed to.
type PaymentMethod string

const (
	MethodCard     PaymentMethod = "card"
	MethodPayPal   PaymentMethod = "paypal"
	MethodApplePay PaymentMethod = "apple_pay"
	// MethodFree marks a zero-total order that bypassed every gateway.
	MethodFree PaymentMethod = "free"
)

// Status tracks the order's payment lifecycle.
type Status string

const (
	// StatusPending marks a card order awaiting the hosted payment page.
	StatusPending Status = "pending"
	// StatusCompleted marks a paid (or free) order.
	StatusCompleted Status = "completed"
)

// Item is a single order line with the server-resolved unit price.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Customer holds the contact fields collected at checkout.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Order is the persisted checkout result. Totals are always recomputed
// server-side from product and promo records; client-submitted totals are
// only used as a consistency check.
type Order struct {
	ID          string
	Items       []Item
	Customer    Customer
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	Method      PaymentMethod
	PromoCode   string
	FreeOrder   bool
	Conversion  *currency.Conversion
	ProviderRef string
	Status      Status
	CreatedAt   time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}
