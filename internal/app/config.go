package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr            string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL     string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL        string `default:"redis://localhost:6379/0" usage:"Redis connection URL for cart storage" flag:"redis-url"`
	ImageBaseURL    string `default:"" usage:"Base URL for product images" flag:"image-base-url"`
	CartTokenPepper string `usage:"HMAC pepper for cart token signing (SHOP_CART_TOKEN_PEPPER)" flag:"cart-token-pepper"`
	CartTTL         time.Duration `default:"168h" usage:"Idle cart lifetime" flag:"cart-ttl"`

	Currency  CurrencyConfig
	Gateways  GatewaysConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// CurrencyConfig controls display and settlement currencies and the static
// fallback rates used when the live rate lookup fails.
type CurrencyConfig struct {
	Display       string            `default:"USD" usage:"Currency prices are quoted in"`
	Settlement    string            `default:"" usage:"Currency charges settle in; empty disables conversion"`
	FallbackRates map[string]string `usage:"Static fallback rates, display currency -> rate (e.g. USD:48.50)"`
	LookupTimeout time.Duration     `default:"3s" usage:"Live rate lookup timeout" flag:"rate-timeout"`
}

// GatewaysConfig holds the payment and exchange provider endpoints.
type GatewaysConfig struct {
	Exchange       ProviderConfig
	Card           ProviderConfig
	CardReturnURL  string `default:"" usage:"Redirect target after the hosted card page" flag:"card-return-url"`
	PayPal         ProviderConfig
	PayPalClientID string `usage:"PayPal REST client ID" flag:"paypal-client-id"`
	PayPalSecret   string `usage:"PayPal REST secret" flag:"paypal-secret"`
	ApplePay       ProviderConfig
}

// ProviderConfig is one external provider's connection settings.
type ProviderConfig struct {
	BaseURL string        `usage:"Provider base URL"`
	APIKey  string        `usage:"Provider API key"`
	Timeout time.Duration `default:"0s" usage:"Per-call timeout; 0 uses the provider default"`
}

// KafkaConfig controls order event publishing. Empty brokers disable it.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses"`
	Topic   string   `default:"orders.completed" usage:"Topic for order completion events"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	}
	if cfg.CartTokenPepper == "" {
		return nil, errors.New("cart token pepper is required: set SHOP_CART_TOKEN_PEPPER")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.RedisURL == "redis://localhost:6379/0" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
