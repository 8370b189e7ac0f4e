package gateway

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/nilecart/storefront/internal/domain/currency"
)

var _ currency.RateSource = (*ExchangeClient)(nil)

// ExchangeClient fetches live exchange rates over HTTP. Lookups run through a
// circuit breaker: once the rate service starts failing, calls fail fast and
// the converter falls back to its static rates.
type ExchangeClient struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	apiKey  string
}

// NewExchangeClient creates an ExchangeClient for the given provider.
func NewExchangeClient(cfg Config) *ExchangeClient {
	return &ExchangeClient{
		client:  newClient(cfg, DefaultExchangeTimeout),
		breaker: newBreaker("exchange"),
		apiKey:  cfg.APIKey,
	}
}

type rateResponse struct {
	Base  string          `json:"base"`
	Quote string          `json:"quote"`
	Rate  decimal.Decimal `json:"rate"`
}

// Rate returns the live rate from one unit of `from` to `to`.
func (c *ExchangeClient) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		var out rateResponse
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.apiKey).
			SetQueryParam("base", from).
			SetQueryParam("quote", to).
			SetResult(&out).
			Get("/v1/rates")
		if err != nil {
			return nil, errors.Wrap(err, "fetch rate")
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, errors.Errorf("rate service returned status %d", resp.StatusCode())
		}
		return out.Rate, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return res.(decimal.Decimal), nil
}
