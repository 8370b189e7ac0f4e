// Command seed-db runs migrations and loads the catalog and a handful of
// promo codes for local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nilecart/storefront/internal/repository"
)

type productJSON struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	BasePrice      decimal.Decimal  `json:"base_price"`
	DiscountPrice  *decimal.Decimal `json:"discount_price"`
	DiscountActive bool             `json:"discount_active"`
	Category       string           `json:"category"`
	Image          struct {
		Thumbnail string `json:"thumbnail"`
		Mobile    string `json:"mobile"`
		Tablet    string `json:"tablet"`
		Desktop   string `json:"desktop"`
	} `json:"image"`
}

const upsertProductSQL = `INSERT INTO products
	(id, name, base_price, discount_price, discount_active, category,
	 image_thumbnail, image_mobile, image_tablet, image_desktop)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		base_price = EXCLUDED.base_price,
		discount_price = EXCLUDED.discount_price,
		discount_active = EXCLUDED.discount_active,
		category = EXCLUDED.category,
		image_thumbnail = EXCLUDED.image_thumbnail,
		image_mobile = EXCLUDED.image_mobile,
		image_tablet = EXCLUDED.image_tablet,
		image_desktop = EXCLUDED.image_desktop`

const upsertPromoSQL = `INSERT INTO promo_codes (code, description, discount_type, value, min_order_amount, active)
	VALUES ($1, $2, $3, $4, $5, TRUE)
	ON CONFLICT (code) DO UPDATE SET
		description = EXCLUDED.description,
		discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value,
		min_order_amount = EXCLUDED.min_order_amount,
		active = TRUE`

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedPromoCodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.BasePrice, p.DiscountPrice, p.DiscountActive, p.Category,
			p.Image.Thumbnail, p.Image.Mobile, p.Image.Tablet, p.Image.Desktop,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

type promoSeed struct {
	code           string
	description    string
	discountType   string
	value          decimal.Decimal
	minOrderAmount *decimal.Decimal
}

func seedPromoCodes(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding promo codes")

	min400 := decimal.NewFromInt(400)
	promos := []promoSeed{
		{
			code:         "HAPPYHOURS",
			description:  "Happy Hours: 18% off entire order",
			discountType: "percentage",
			value:        decimal.NewFromInt(18),
		},
		{
			code:           "BIGSPEND20",
			description:    "20% off orders over 400",
			discountType:   "percentage",
			value:          decimal.NewFromInt(20),
			minOrderAmount: &min400,
		},
		{
			code:         "WELCOME50",
			description:  "50 off your first order",
			discountType: "fixed",
			value:        decimal.NewFromInt(50),
		},
	}

	for _, p := range promos {
		if _, err := pool.Exec(ctx, upsertPromoSQL,
			p.code, p.description, p.discountType, p.value, p.minOrderAmount,
		); err != nil {
			return errors.Wrapf(err, "upsert promo code %s", p.code)
		}

		slog.Info("upserted promo code", slog.String("code", p.code))
	}

	return nil
}
