// Package app wires configuration, storage, gateways, domain services, and
// the HTTP server into a running API process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nilecart/storefront/internal/cache"
	"github.com/nilecart/storefront/internal/domain/cart"
	"github.com/nilecart/storefront/internal/domain/checkout"
	"github.com/nilecart/storefront/internal/domain/currency"
	"github.com/nilecart/storefront/internal/domain/promo"
	"github.com/nilecart/storefront/internal/events"
	"github.com/nilecart/storefront/internal/gateway"
	"github.com/nilecart/storefront/internal/handler"
	"github.com/nilecart/storefront/internal/repository"
	"github.com/nilecart/storefront/pkg/health"
	"github.com/nilecart/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Redis cart store.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return errors.Wrap(err, "parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories and stores.
	productRepo := repository.NewProductRepository(pool)
	promoRepo := repository.NewPromoRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	cartStore := cache.NewRedisCartStore(redisClient, cfg.CartTTL)

	// Currency conversion.
	converter, err := buildConverter(cfg.Currency, cfg.Gateways.Exchange)
	if err != nil {
		return errors.Wrap(err, "build converter")
	}

	// Payment gateways.
	cardGateway := gateway.NewCardClient(providerConfig(cfg.Gateways.Card), cfg.Gateways.CardReturnURL, cfg.Currency.Display)
	paypalGateway := gateway.NewPayPalClient(providerConfig(cfg.Gateways.PayPal), cfg.Gateways.PayPalClientID, cfg.Gateways.PayPalSecret)
	applePayGateway := gateway.NewApplePayClient(providerConfig(cfg.Gateways.ApplePay))

	// Order event publishing.
	var publisher checkout.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = kafkaPub.Close() }()
		publisher = kafkaPub
	}

	// Domain services.
	promoValidator := promo.NewRepoValidator(promoRepo)
	cartService := cart.NewService(cartStore, productRepo, promoValidator)
	checkoutService := checkout.NewService(
		cartStore, productRepo, promoValidator, promoRepo, orderRepo,
		converter, cardGateway, paypalGateway, applePayGateway, publisher,
	)

	// HTTP surface.
	h := handler.NewHandler(
		handler.Config{
			ImageBaseURL:    cfg.ImageBaseURL,
			CartTokenPepper: []byte(cfg.CartTokenPepper),
			DisplayCurrency: cfg.Currency.Display,
		},
		productRepo,
		cartService,
		checkoutService,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{"Content-Type", handler.CartTokenHeader},
				MaxAge:       86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// buildConverter assembles the currency converter from config. An empty
// settlement currency disables conversion entirely.
func buildConverter(cfg CurrencyConfig, exchange ProviderConfig) (checkout.Converter, error) {
	if cfg.Settlement == "" || cfg.Settlement == cfg.Display {
		return noConversion{}, nil
	}

	fallback := make(map[string]decimal.Decimal, len(cfg.FallbackRates))
	for curr, raw := range cfg.FallbackRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "fallback rate for %s", curr)
		}
		fallback[curr] = rate
	}

	rates := gateway.NewExchangeClient(providerConfig(exchange))
	return currency.NewConverter(rates, currency.Settings{
		SettlementCurrency: cfg.Settlement,
		FallbackRates:      fallback,
	}, cfg.LookupTimeout), nil
}

// noConversion is the converter used when no settlement currency is set.
type noConversion struct{}

func (noConversion) Convert(context.Context, decimal.Decimal, string) *currency.Conversion {
	return nil
}

func providerConfig(p ProviderConfig) gateway.Config {
	return gateway.Config{BaseURL: p.BaseURL, APIKey: p.APIKey, Timeout: p.Timeout}
}
