package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/domain/currency"
	"github.com/nilecart/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, items, customer, subtotal, discount, total, method, promo_code, free_order,
		 conversion, provider_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	getOrderByIDSQL = `SELECT id, items, customer, subtotal, discount, total, method, promo_code,
		free_order, conversion, provider_ref, status, created_at
		FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Items,
// customer, and conversion details are serialized into JSONB columns; the
// money columns stay NUMERIC so they remain queryable.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	customerJSON, err := json.Marshal(o.Customer)
	if err != nil {
		return fmt.Errorf("marshaling order customer: %w", err)
	}
	var conversionJSON []byte
	if o.Conversion != nil {
		conversionJSON, err = json.Marshal(o.Conversion)
		if err != nil {
			return fmt.Errorf("marshaling order conversion: %w", err)
		}
	}

	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, itemsJSON, customerJSON, o.Subtotal, o.Discount, o.Total,
		string(o.Method), o.PromoCode, o.FreeOrder,
		conversionJSON, o.ProviderRef, string(o.Status), createdAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		itemsJSON      []byte
		customerJSON   []byte
		conversionJSON []byte
		subtotal       decimal.Decimal
		discount       decimal.Decimal
		total          decimal.Decimal
		method         string
		status         string
	)
	err := row.Scan(
		&o.ID, &itemsJSON, &customerJSON, &subtotal, &discount, &total,
		&method, &o.PromoCode, &o.FreeOrder,
		&conversionJSON, &o.ProviderRef, &status, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(customerJSON, &o.Customer); err != nil {
		return o, fmt.Errorf("unmarshaling order customer: %w", err)
	}
	if len(conversionJSON) > 0 {
		var conv currency.Conversion
		if err := json.Unmarshal(conversionJSON, &conv); err != nil {
			return o, fmt.Errorf("unmarshaling order conversion: %w", err)
		}
		o.Conversion = &conv
	}

	o.Subtotal = subtotal
	o.Discount = discount
	o.Total = total
	o.Method = order.PaymentMethod(method)
	o.Status = order.Status(status)
	return o, nil
}
