package currency

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultLookupTimeout bounds the live rate lookup so checkout never stalls
// on a slow exchange-rate service.
const defaultLookupTimeout = 3 * time.Second

// Converter converts payable totals into the settlement currency. Lookup
// failures are absorbed: the converter falls back to the configured static
// rate and never returns an error to the checkout flow.
type Converter struct {
	rates    RateSource
	settings Settings
	timeout  time.Duration
}

// NewConverter creates a Converter. A zero lookup timeout selects the
// default of 3 seconds.
func NewConverter(rates RateSource, settings Settings, timeout time.Duration) *Converter {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Converter{rates: rates, settings: settings, timeout: timeout}
}

// Convert converts amount from the display currency into the settlement
// currency. It returns nil when no conversion is needed (same currency) or
// when no rate is available at all; checkout then proceeds with the original
// amount.
func (c *Converter) Convert(ctx context.Context, amount decimal.Decimal, displayCurrency string) *Conversion {
	if displayCurrency == c.settings.SettlementCurrency {
		return nil
	}

	rate, live := c.lookupRate(ctx, displayCurrency)
	if !rate.IsPositive() {
		zctx.From(ctx).Error("no exchange rate available, skipping conversion",
			zap.String("from", displayCurrency),
			zap.String("to", c.settings.SettlementCurrency),
		)
		return nil
	}

	return &Conversion{
		OriginalAmount:   amount,
		OriginalCurrency: displayCurrency,
		Amount:           amount.Mul(rate).Round(2),
		Currency:         c.settings.SettlementCurrency,
		Rate:             rate,
		LiveRate:         live,
	}
}

// lookupRate tries the live rate source under a bounded timeout, falling back
// to the static configured rate on any failure.
func (c *Converter) lookupRate(ctx context.Context, displayCurrency string) (decimal.Decimal, bool) {
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	rate, err := c.rates.Rate(lookupCtx, displayCurrency, c.settings.SettlementCurrency)
	if err == nil && rate.IsPositive() {
		return rate, true
	}

	if err != nil {
		zctx.From(ctx).Warn("live rate lookup failed, using fallback rate",
			zap.String("from", displayCurrency),
			zap.String("to", c.settings.SettlementCurrency),
			zap.Error(err),
		)
	}

	return c.settings.FallbackRates[displayCurrency], false
}
