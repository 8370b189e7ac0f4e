// Package currency converts customer-facing totals into the store's
// settlement currency for payment gateways.
package currency

import (
	"context"

	"github.com/shopspring/decimal"
)

// Conversion records how a customer-facing amount was converted into the
// settlement currency. Both sides are persisted on the order for
// reconciliation. No Conversion is produced when the display currency already
// equals the settlement currency.
type Conversion struct {
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	OriginalCurrency string          `json:"original_currency"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Rate             decimal.Decimal `json:"rate"`
	LiveRate         bool            `json:"live_rate"`
}

// RateSource provides a live exchange rate between two currencies.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Settings configures the converter: the gateway's settlement currency and
// static fallback rates per display currency, used when the live lookup
// fails.
type Settings struct {
	SettlementCurrency string
	FallbackRates      map[string]decimal.Decimal
}
