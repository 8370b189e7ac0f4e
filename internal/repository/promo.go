package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/promo"
)

const (
	getPromoByCodeSQL = `SELECT code, description, discount_type, value, min_order_amount,
		max_uses, uses, active, expires_at
		FROM promo_codes WHERE UPPER(code) = UPPER($1)`

	incrementPromoUsesSQL = `UPDATE promo_codes SET uses = uses + 1 WHERE UPPER(code) = UPPER($1)`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo code (case-insensitive). Inactive codes are
// still returned so the validator can report the precise rejection reason.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Code, error) {
	rows, err := r.pool.Query(ctx, getPromoByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanPromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUses atomically increments the usage counter for the given code.
func (r *PromoRepository) IncrementUses(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, incrementPromoUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for promo %q: %w", code, err)
	}
	return nil
}

func scanPromoCode(row pgx.CollectableRow) (promo.Code, error) {
	var (
		c            promo.Code
		discountType string
		value        decimal.Decimal
		minOrder     *decimal.Decimal
		maxUses      int32
		uses         int32
		expiresAt    *time.Time
	)
	err := row.Scan(
		&c.Code, &c.Description, &discountType, &value, &minOrder,
		&maxUses, &uses, &c.Active, &expiresAt,
	)
	c.DiscountType = promo.DiscountType(discountType)
	c.Value = value
	c.MinOrderAmount = minOrder
	c.MaxUses = int(maxUses)
	c.Uses = int(uses)
	c.ExpiresAt = expiresAt
	return c, err
}
