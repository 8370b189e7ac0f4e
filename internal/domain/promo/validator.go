package promo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator validates a promo code against a cart subtotal and returns the
// computed discount. Implementations must be side-effect free so repeated
// validation calls are safe to retry.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Validation, error)
}

// RepoValidator implements Validator by looking up promo codes from a
// Repository and applying their eligibility rules in order: existence,
// active flag, expiry, usage limit, minimum order amount.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate checks the code against the current subtotal. It never mutates the
// code's use count; incrementing happens only at order finalization.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Validation, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return nil, ErrNotFound
	}

	c, err := v.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	if !c.Active {
		return nil, ErrInactive
	}
	if c.ExpiresAt != nil && v.now().After(*c.ExpiresAt) {
		return nil, ErrExpired
	}
	if c.MaxUses > 0 && c.Uses >= c.MaxUses {
		return nil, ErrExhausted
	}
	if c.MinOrderAmount != nil && subtotal.LessThan(*c.MinOrderAmount) {
		return nil, &BelowMinimumError{Minimum: *c.MinOrderAmount}
	}

	amount, err := discountFor(c, subtotal)
	if err != nil {
		return nil, err
	}

	return &Validation{
		Code:           c.Code,
		Description:    c.Description,
		DiscountAmount: amount,
		FinalTotal:     finalTotal(subtotal, amount),
	}, nil
}

// Normalize upper-cases and trims a user-entered promo code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
