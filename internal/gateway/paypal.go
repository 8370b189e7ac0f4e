package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/nilecart/storefront/internal/domain/checkout"
)

var _ checkout.PayPalGateway = (*PayPalClient)(nil)

// PayPalClient captures PayPal orders created by the client-side button flow.
// OAuth tokens are cached until shortly before expiry.
type PayPalClient struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker

	clientID string
	secret   string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient creates a PayPalClient with the given REST credentials.
func NewPayPalClient(cfg Config, clientID, secret string) *PayPalClient {
	return &PayPalClient{
		client:   newClient(cfg, DefaultPaymentTimeout),
		breaker:  newBreaker("paypal"),
		clientID: clientID,
		secret:   secret,
	}
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type paypalCaptureResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Amount struct {
					CurrencyCode string          `json:"currency_code"`
					Value        decimal.Decimal `json:"value"`
				} `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CaptureOrder captures the approved provider-side order and returns the
// captured amount for verification against the server-computed total.
func (c *PayPalClient) CaptureOrder(ctx context.Context, providerOrderID string) (*checkout.Capture, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var out paypalCaptureResponse
		resp, err := c.client.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetResult(&out).
			Post("/v2/checkout/orders/" + providerOrderID + "/capture")
		if err != nil {
			return nil, errors.Wrap(err, "capture order")
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
			return nil, errors.Errorf("paypal returned status %d: %s", resp.StatusCode(), resp.String())
		}
		if out.Status != "COMPLETED" {
			return nil, errors.Errorf("capture not completed: %s", out.Status)
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	out := res.(*paypalCaptureResponse)
	if len(out.PurchaseUnits) == 0 || len(out.PurchaseUnits[0].Payments.Captures) == 0 {
		return nil, errors.New("capture response missing payment details")
	}
	cap := out.PurchaseUnits[0].Payments.Captures[0]

	return &checkout.Capture{
		ProviderRef: cap.ID,
		Amount:      cap.Amount.Value,
		Currency:    cap.Amount.CurrencyCode,
	}, nil
}

// token returns a cached OAuth token, refreshing it when it is within a
// minute of expiring.
func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	var out paypalTokenResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.secret).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody("grant_type=client_credentials").
		SetResult(&out).
		Post("/v1/oauth2/token")
	if err != nil {
		return "", errors.Wrap(err, "fetch oauth token")
	}
	if resp.StatusCode() != http.StatusOK {
		return "", errors.Errorf("paypal token endpoint returned status %d", resp.StatusCode())
	}
	if out.AccessToken == "" {
		return "", errors.New("paypal returned empty access token")
	}

	c.accessToken = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
