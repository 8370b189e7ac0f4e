// Package gateway holds the HTTP clients for external providers: the exchange
// rate service and the payment backends. Every client carries its own bounded
// timeout so a slow provider cannot stall checkout indefinitely.
package gateway

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const (
	// DefaultPaymentTimeout bounds a single payment-provider call.
	DefaultPaymentTimeout = 10 * time.Second
	// DefaultExchangeTimeout bounds a single exchange-rate lookup.
	DefaultExchangeTimeout = 3 * time.Second
)

// Config is the shared connection configuration for a provider client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func newClient(cfg Config, fallback time.Duration) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = fallback
	}
	return resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
}

// newBreaker builds the circuit breaker shared by all provider clients: trip
// after 3+ requests with a 60% failure ratio, probe again after 30s.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
	})
}
