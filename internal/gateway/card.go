package gateway

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/nilecart/storefront/internal/domain/checkout"
	"github.com/nilecart/storefront/internal/domain/order"
)

var _ checkout.CardGateway = (*CardClient)(nil)

// CardClient talks to the card processor's hosted-payment API.
type CardClient struct {
	client       *resty.Client
	breaker      *gobreaker.CircuitBreaker
	apiKey       string
	returnURL    string
	baseCurrency string
}

// NewCardClient creates a CardClient. returnURL is where the processor sends
// the customer after the hosted page completes; baseCurrency is charged when
// an order carries no conversion.
func NewCardClient(cfg Config, returnURL, baseCurrency string) *CardClient {
	return &CardClient{
		client:       newClient(cfg, DefaultPaymentTimeout),
		breaker:      newBreaker("card"),
		apiKey:       cfg.APIKey,
		returnURL:    returnURL,
		baseCurrency: baseCurrency,
	}
}

type hostedPaymentRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	Email     string `json:"customer_email"`
	ReturnURL string `json:"return_url"`
}

type hostedPaymentResponse struct {
	ID         string `json:"id"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

// CreateHostedPayment registers the order with the processor and returns the
// hosted payment page the customer must be redirected to.
func (c *CardClient) CreateHostedPayment(ctx context.Context, o *order.Order) (*checkout.HostedPayment, error) {
	amount, curr := o.Total, c.baseCurrency
	if o.Conversion != nil {
		amount, curr = o.Conversion.Amount, o.Conversion.Currency
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		var out hostedPaymentResponse
		resp, err := c.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+c.apiKey).
			SetBody(hostedPaymentRequest{
				Amount:    amount.StringFixed(2),
				Currency:  curr,
				Reference: o.ID,
				Email:     o.Customer.Email,
				ReturnURL: c.returnURL,
			}).
			SetResult(&out).
			Post("/v1/payments/hosted")
		if err != nil {
			return nil, errors.Wrap(err, "create hosted payment")
		}
		if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
			return nil, errors.Errorf("card processor returned status %d: %s", resp.StatusCode(), resp.String())
		}
		if out.PaymentURL == "" {
			return nil, errors.New("card processor returned no payment url")
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	out := res.(*hostedPaymentResponse)
	return &checkout.HostedPayment{
		PaymentURL:  out.PaymentURL,
		ProviderRef: out.ID,
	}, nil
}
