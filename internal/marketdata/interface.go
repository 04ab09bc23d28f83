package marketdata

import (
	"context"
	"fmt"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

// Provider fetches OHLCV candles from the quote vendor.
//
// Implementations must be safe for concurrent use: the orchestrator fans out
// one call per timeframe and the monitor polls from its own goroutine.
type Provider interface {
	// FetchCandles returns up to count candles for (symbol, interval),
	// ordered newest-first. Idempotent; no caching.
	FetchCandles(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error)
}

// VendorError is a documented error envelope returned by the vendor with a
// 2xx status. It is a permanent, non-retryable failure for that request.
type VendorError struct {
	Code    int
	Message string
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("vendor error %d: %s", e.Code, e.Message)
}
