package currency

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRateSource struct {
	rate  decimal.Decimal
	err   error
	delay time.Duration
	calls int
}

func (m *mockRateSource) Rate(ctx context.Context, _, _ string) (decimal.Decimal, error) {
	m.calls++
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}
	return m.rate, m.err
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testSettings() Settings {
	return Settings{
		SettlementCurrency: "EGP",
		FallbackRates: map[string]decimal.Decimal{
			"USD": dec("48.50"),
		},
	}
}

func TestConvert_SameCurrencyReturnsNil(t *testing.T) {
	rates := &mockRateSource{rate: dec("48.90")}
	conv := NewConverter(rates, testSettings(), 0)

	got := conv.Convert(context.Background(), dec("100"), "EGP")

	assert.Nil(t, got)
	assert.Zero(t, rates.calls, "no lookup when currencies match")
}

func TestConvert_LiveRate(t *testing.T) {
	rates := &mockRateSource{rate: dec("48.90")}
	conv := NewConverter(rates, testSettings(), 0)

	got := conv.Convert(context.Background(), dec("100"), "USD")

	require.NotNil(t, got)
	assert.True(t, got.LiveRate)
	assert.True(t, dec("4890.00").Equal(got.Amount), "got %s", got.Amount)
	assert.True(t, dec("100").Equal(got.OriginalAmount))
	assert.Equal(t, "USD", got.OriginalCurrency)
	assert.Equal(t, "EGP", got.Currency)
}

func TestConvert_LookupFailureUsesFallbackRate(t *testing.T) {
	rates := &mockRateSource{err: errors.New("rate service down")}
	conv := NewConverter(rates, testSettings(), 0)

	got := conv.Convert(context.Background(), dec("100"), "USD")

	require.NotNil(t, got)
	assert.False(t, got.LiveRate)
	assert.True(t, dec("48.50").Equal(got.Rate))
	assert.True(t, dec("4850.00").Equal(got.Amount))
}

func TestConvert_SlowLookupIsBounded(t *testing.T) {
	rates := &mockRateSource{rate: dec("48.90"), delay: time.Second}
	conv := NewConverter(rates, testSettings(), 20*time.Millisecond)

	start := time.Now()
	got := conv.Convert(context.Background(), dec("100"), "USD")

	assert.Less(t, time.Since(start), 500*time.Millisecond, "checkout must not stall on the lookup")
	require.NotNil(t, got)
	assert.False(t, got.LiveRate)
	assert.True(t, dec("48.50").Equal(got.Rate))
}

func TestConvert_NonPositiveLiveRateFallsBack(t *testing.T) {
	rates := &mockRateSource{rate: decimal.Zero}
	conv := NewConverter(rates, testSettings(), 0)

	got := conv.Convert(context.Background(), dec("100"), "USD")

	require.NotNil(t, got)
	assert.False(t, got.LiveRate)
}

func TestConvert_NoFallbackConfiguredReturnsNil(t *testing.T) {
	rates := &mockRateSource{err: errors.New("down")}
	conv := NewConverter(rates, testSettings(), 0)

	got := conv.Convert(context.Background(), dec("100"), "GBP")

	assert.Nil(t, got)
}
