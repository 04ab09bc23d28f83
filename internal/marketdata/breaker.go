package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

// BreakerProvider wraps a Provider with circuit breaker functionality so a
// misbehaving vendor stops burning the monitor's and orchestrator's time.
type BreakerProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

// BreakerSettings configures circuit breaker behavior.
type BreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewBreakerProvider wraps provider with sensible circuit breaker defaults.
func NewBreakerProvider(provider Provider, logger *logrus.Logger) *BreakerProvider {
	return NewBreakerProviderWithSettings(provider, logger, BreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	})
}

// NewBreakerProviderWithSettings wraps provider with custom settings.
func NewBreakerProviderWithSettings(provider Provider, logger *logrus.Logger, settings BreakerSettings) *BreakerProvider {
	gbSettings := gobreaker.Settings{
		Name:        "QuoteVendorBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// A documented vendor error envelope is a valid answer for that
			// request, not a vendor outage.
			var vendorErr *VendorError
			return err == nil || errors.As(err, &vendorErr)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warnf("circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &BreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// FetchCandles wraps the underlying provider call with the circuit breaker.
func (b *BreakerProvider) FetchCandles(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.provider.FetchCandles(ctx, symbol, interval, count)
	})
	if err != nil {
		return nil, err
	}
	candles, ok := res.([]models.Candle)
	if !ok {
		return nil, errors.New("circuit breaker: type assertion failed")
	}
	return candles, nil
}

var _ Provider = (*BreakerProvider)(nil)
