package promo

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reapplier keeps an applied promo consistent with a changing cart subtotal.
//
// The transition is Applied -> Reapplying -> {Applied', Cleared}: a successful
// revalidation silently replaces the applied state (the discount may shrink or
// grow), while any rejection silently clears it — the customer has to re-enter
// the code. An empty cart always clears the promo.
type Reapplier struct {
	validator Validator
}

// NewReapplier creates a Reapplier using the given Validator.
func NewReapplier(v Validator) *Reapplier {
	return &Reapplier{validator: v}
}

// Reapply revalidates the applied promo against the new subtotal. It returns
// the refreshed validation and true when the code is still eligible, or
// (nil, false) when the promo has been cleared. A nil applied promo passes
// through unchanged.
func (r *Reapplier) Reapply(ctx context.Context, applied *Validation, subtotal decimal.Decimal, cartEmpty bool) (*Validation, bool) {
	if applied == nil {
		return nil, false
	}
	if cartEmpty {
		return nil, false
	}

	revalidated, err := r.validator.Validate(ctx, applied.Code, subtotal)
	if err != nil {
		zctx.From(ctx).Info("promo cleared on reapplication",
			zap.String("code", applied.Code),
			zap.String("reason", err.Error()),
		)
		return nil, false
	}

	return revalidated, true
}
