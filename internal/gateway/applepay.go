package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/nilecart/storefront/internal/domain/checkout"
)

var _ checkout.ApplePayGateway = (*ApplePayClient)(nil)

// ApplePayClient submits Apple Pay payment tokens to the processor for
// decryption and authorization.
type ApplePayClient struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	apiKey  string
}

// NewApplePayClient creates an ApplePayClient.
func NewApplePayClient(cfg Config) *ApplePayClient {
	return &ApplePayClient{
		client:  newClient(cfg, DefaultPaymentTimeout),
		breaker: newBreaker("apple_pay"),
		apiKey:  cfg.APIKey,
	}
}

type applePayAuthRequest struct {
	Token    json.RawMessage `json:"token"`
	Amount   string          `json:"amount"`
	Currency string          `json:"currency"`
}

type applePayAuthResponse struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// Authorize sends the opaque payment token and the charge to the processor.
// The payload is passed through untouched; decryption happens provider-side.
func (c *ApplePayClient) Authorize(ctx context.Context, payload []byte, amount decimal.Decimal, currencyCode string) (*checkout.Capture, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty payment token")
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var out applePayAuthResponse
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.apiKey).
			SetBody(applePayAuthRequest{
				Token:    json.RawMessage(payload),
				Amount:   amount.StringFixed(2),
				Currency: currencyCode,
			}).
			SetResult(&out).
			Post("/v1/applepay/authorize")
		if err != nil {
			return nil, errors.Wrap(err, "authorize payment token")
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, errors.Errorf("processor returned status %d: %s", resp.StatusCode(), resp.String())
		}
		if out.Status != "approved" {
			return nil, errors.Errorf("authorization declined: %s", out.Status)
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	out := res.(*applePayAuthResponse)
	return &checkout.Capture{
		ProviderRef: out.TransactionID,
		Amount:      out.Amount,
		Currency:    out.Currency,
	}, nil
}
