package promo

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPromoRepo struct {
	code          *Code
	err           error
	lookupCode    string
	incrementErr  error
	incrementCode string
}

func (m *mockPromoRepo) FindByCode(_ context.Context, code string) (*Code, error) {
	m.lookupCode = code
	return m.code, m.err
}

func (m *mockPromoRepo) IncrementUses(_ context.Context, code string) error {
	m.incrementCode = code
	return m.incrementErr
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name         string
		repo         *mockPromoRepo
		code         string
		subtotal     decimal.Decimal
		wantDiscount decimal.Decimal
		wantTotal    decimal.Decimal
		wantErr      error
	}{
		{
			name: "percentage code computes discount and final total",
			repo: &mockPromoRepo{
				code: &Code{Code: "SAVE10", DiscountType: DiscountPercentage, Value: dec("10"), Active: true},
			},
			code:         "SAVE10",
			subtotal:     dec("200"),
			wantDiscount: dec("20"),
			wantTotal:    dec("180"),
		},
		{
			name: "fixed code larger than subtotal is capped",
			repo: &mockPromoRepo{
				code: &Code{Code: "FLAT100", DiscountType: DiscountFixed, Value: dec("100"), Active: true},
			},
			code:         "FLAT100",
			subtotal:     dec("50"),
			wantDiscount: dec("50"),
			wantTotal:    decimal.Zero,
		},
		{
			name: "fixed code below subtotal applies in full",
			repo: &mockPromoRepo{
				code: &Code{Code: "FLAT15", DiscountType: DiscountFixed, Value: dec("15"), Active: true},
			},
			code:         "FLAT15",
			subtotal:     dec("60"),
			wantDiscount: dec("15"),
			wantTotal:    dec("45"),
		},
		{
			name:     "unknown code",
			repo:     &mockPromoRepo{err: ErrNotFound},
			code:     "BOGUS",
			subtotal: dec("100"),
			wantErr:  ErrNotFound,
		},
		{
			name: "inactive code",
			repo: &mockPromoRepo{
				code: &Code{Code: "DISABLED", DiscountType: DiscountPercentage, Value: dec("10"), Active: false},
			},
			code:     "DISABLED",
			subtotal: dec("100"),
			wantErr:  ErrInactive,
		},
		{
			name: "expired code",
			repo: &mockPromoRepo{
				code: &Code{Code: "OLD", DiscountType: DiscountPercentage, Value: dec("10"), Active: true, ExpiresAt: &pastTime},
			},
			code:     "OLD",
			subtotal: dec("100"),
			wantErr:  ErrExpired,
		},
		{
			name: "expiry in the future is still valid",
			repo: &mockPromoRepo{
				code: &Code{Code: "FRESH", DiscountType: DiscountPercentage, Value: dec("10"), Active: true, ExpiresAt: &futureTime},
			},
			code:         "FRESH",
			subtotal:     dec("100"),
			wantDiscount: dec("10"),
			wantTotal:    dec("90"),
		},
		{
			name: "usage limit reached",
			repo: &mockPromoRepo{
				code: &Code{Code: "LIMITED", DiscountType: DiscountFixed, Value: dec("5"), Active: true, MaxUses: 100, Uses: 100},
			},
			code:     "LIMITED",
			subtotal: dec("100"),
			wantErr:  ErrExhausted,
		},
		{
			name: "usage under limit succeeds",
			repo: &mockPromoRepo{
				code: &Code{Code: "HASROOM", DiscountType: DiscountFixed, Value: dec("5"), Active: true, MaxUses: 100, Uses: 99},
			},
			code:         "HASROOM",
			subtotal:     dec("100"),
			wantDiscount: dec("5"),
			wantTotal:    dec("95"),
		},
		{
			name: "unlimited uses when max uses is zero",
			repo: &mockPromoRepo{
				code: &Code{Code: "FOREVER", DiscountType: DiscountFixed, Value: dec("5"), Active: true, Uses: 12345},
			},
			code:         "FOREVER",
			subtotal:     dec("100"),
			wantDiscount: dec("5"),
			wantTotal:    dec("95"),
		},
		{
			name: "subtotal below minimum order amount",
			repo: &mockPromoRepo{
				code: &Code{Code: "MIN400", DiscountType: DiscountPercentage, Value: dec("10"), Active: true, MinOrderAmount: decPtr("400")},
			},
			code:     "MIN400",
			subtotal: dec("300"),
			wantErr:  errBelowMinimum,
		},
		{
			name: "subtotal meeting minimum succeeds",
			repo: &mockPromoRepo{
				code: &Code{Code: "MIN400", DiscountType: DiscountPercentage, Value: dec("10"), Active: true, MinOrderAmount: decPtr("400")},
			},
			code:         "MIN400",
			subtotal:     dec("400"),
			wantDiscount: dec("40"),
			wantTotal:    dec("360"),
		},
		{
			name: "percentage over 100 is capped at the subtotal",
			repo: &mockPromoRepo{
				code: &Code{Code: "MEGA150", DiscountType: DiscountPercentage, Value: dec("150"), Active: true},
			},
			code:         "MEGA150",
			subtotal:     dec("100"),
			wantDiscount: dec("100"),
			wantTotal:    decimal.Zero,
		},
		{
			name: "percentage result is rounded to two decimal places",
			repo: &mockPromoRepo{
				code: &Code{Code: "THIRD", DiscountType: DiscountPercentage, Value: dec("33.33"), Active: true},
			},
			code:         "THIRD",
			subtotal:     dec("10"),
			wantDiscount: dec("3.33"),
			wantTotal:    dec("6.67"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, tt.subtotal)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, got)
				if errors.Is(tt.wantErr, errBelowMinimum) {
					var bmErr *BelowMinimumError
					assert.ErrorAs(t, err, &bmErr)
				} else {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantDiscount.Equal(got.DiscountAmount),
				"expected discount %s, got %s", tt.wantDiscount, got.DiscountAmount)
			assert.True(t, tt.wantTotal.Equal(got.FinalTotal),
				"expected total %s, got %s", tt.wantTotal, got.FinalTotal)
		})
	}
}

// marker for the table above; BelowMinimumError is matched with errors.As.
var errBelowMinimum = errors.New("below minimum")

func TestRepoValidator_NormalizesCode(t *testing.T) {
	repo := &mockPromoRepo{
		code: &Code{Code: "SAVE10", DiscountType: DiscountPercentage, Value: dec("10"), Active: true},
	}
	v := NewRepoValidator(repo)

	_, err := v.Validate(context.Background(), "  save10 ", dec("100"))

	require.NoError(t, err)
	assert.Equal(t, "SAVE10", repo.lookupCode)
}

func TestRepoValidator_EmptyCode(t *testing.T) {
	v := NewRepoValidator(&mockPromoRepo{})

	_, err := v.Validate(context.Background(), "   ", dec("100"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepoValidator_NeverIncrementsUses(t *testing.T) {
	repo := &mockPromoRepo{
		code: &Code{Code: "SAVE10", DiscountType: DiscountPercentage, Value: dec("10"), Active: true},
	}
	v := NewRepoValidator(repo)

	for range 3 {
		_, err := v.Validate(context.Background(), "SAVE10", dec("100"))
		require.NoError(t, err)
	}

	assert.Empty(t, repo.incrementCode, "validation must not touch the use counter")
}

func TestRepoValidator_RepoError(t *testing.T) {
	repo := &mockPromoRepo{err: errors.New("connection refused")}
	v := NewRepoValidator(repo)

	_, err := v.Validate(context.Background(), "SAVE10", dec("100"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup promo code")
}
