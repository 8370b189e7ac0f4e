// Package checkout orchestrates the pricing, promotion, currency conversion,
// and payment dispatch pipeline that turns a cart into an order.
package checkout

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/currency"
	"github.com/nilecart/storefront/internal/domain/order"
)

var (
	// ErrEmptyCart is returned when checkout is attempted on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUnknownMethod is returned for an unrecognized payment method.
	ErrUnknownMethod = errors.New("unknown payment method")
)

// TotalMismatchError is returned when the client-declared total deviates from
// the server-recomputed total beyond rounding tolerance. Client totals are
// advisory; the server recomputation is authoritative.
type TotalMismatchError struct {
	Declared decimal.Decimal
	Computed decimal.Decimal
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("declared total %s does not match computed total %s", e.Declared, e.Computed)
}

// GatewayError wraps a payment-provider failure. It is terminal for the
// attempt: the customer must retry or switch methods, no automatic retry.
type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HostedPayment is the card gateway's hosted payment page handle.
type HostedPayment struct {
	PaymentURL  string
	ProviderRef string
}

// Capture is a completed provider-side transaction.
type Capture struct {
	ProviderRef string
	Amount      decimal.Decimal
	Currency    string
}

// CardGateway creates hosted payment pages for card orders.
type CardGateway interface {
	CreateHostedPayment(ctx context.Context, o *order.Order) (*HostedPayment, error)
}

// PayPalGateway captures provider-side PayPal orders.
type PayPalGateway interface {
	CaptureOrder(ctx context.Context, providerOrderID string) (*Capture, error)
}

// ApplePayGateway authorizes Apple Pay payment tokens.
type ApplePayGateway interface {
	Authorize(ctx context.Context, payload []byte, amount decimal.Decimal, currencyCode string) (*Capture, error)
}

// Converter converts payable totals into the settlement currency.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, displayCurrency string) *currency.Conversion
}

// Publisher emits order lifecycle events. Publishing is best effort and never
// fails the checkout.
type Publisher interface {
	OrderCompleted(ctx context.Context, o *order.Order) error
}

// OutcomeKind tags the checkout outcome union.
type OutcomeKind string

const (
	// OutcomeFree: a zero-total order was created directly, no gateway call.
	OutcomeFree OutcomeKind = "free"
	// OutcomeRedirect: a pending card order exists; the customer must be
	// redirected to the hosted payment page.
	OutcomeRedirect OutcomeKind = "redirect"
	// OutcomeSession: the client must run the provider's button flow for the
	// returned charge amount, then call the matching completion endpoint.
	OutcomeSession OutcomeKind = "session"
	// OutcomeCompleted: the provider transaction was captured and the order
	// is finalized.
	OutcomeCompleted OutcomeKind = "completed"
)

// Outcome is the tagged result of dispatching a checkout. Exactly one
// variant's fields are meaningful, selected by Kind.
type Outcome struct {
	Kind        OutcomeKind
	OrderID     string
	PaymentURL  string
	ProviderRef string
	Amount      decimal.Decimal
	Currency    string
}
