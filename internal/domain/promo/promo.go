// Package promo implements promotional code validation and discount
// calculation for the checkout pipeline.
package promo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promo discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary amount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Rejection reasons. Every failed validation maps to exactly one of these.
var (
	// ErrNotFound is returned when no promo code matches the given code.
	ErrNotFound = errors.New("promo code not found")
	// ErrInactive is returned when the code exists but is disabled.
	ErrInactive = errors.New("promo code is not active")
	// ErrExpired is returned when the code's expiry timestamp is in the past.
	ErrExpired = errors.New("promo code expired")
	// ErrExhausted is returned when the code's usage limit has been reached.
	ErrExhausted = errors.New("promo code usage limit reached")
)

// BelowMinimumError is returned when the cart subtotal does not meet the
// code's minimum order amount.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("order subtotal below promo minimum of %s", e.Minimum)
}

// Code is a promotional code with its discount rule and eligibility
// constraints. Codes are stored upper-cased; matching is case-insensitive.
type Code struct {
	Code           string
	Description    string
	DiscountType   DiscountType
	Value          decimal.Decimal
	MinOrderAmount *decimal.Decimal
	MaxUses        int
	Uses           int
	Active         bool
	ExpiresAt      *time.Time
}

// Validation is the result of successfully validating a promo code against a
// cart subtotal. It is transient: recomputed on every cart-affecting event
// and only ever persisted as part of a completed order.
type Validation struct {
	Code           string          `json:"code"`
	Description    string          `json:"description,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalTotal     decimal.Decimal `json:"final_total"`
}

// Repository provides lookup and use-count mutation of promo codes.
// IncrementUses must only be called during order finalization; validation
// itself is side-effect free.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Code, error)
	IncrementUses(ctx context.Context, code string) error
}
