// Package marketdata implements the quote vendor client used for analysis
// context and position monitoring.
//
// The vendor exposes GET /time_series?symbol=&interval=&outputsize=&apikey=
// and answers 200 for both data and documented errors, so the error envelope
// is detected by inspecting the decoded body rather than the status code.
package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

const datetimeLayout = "2006-01-02 15:04:05"

// Client is the REST quote vendor client. It wraps a resty client with
// timeout and bounded retry on transient failures.
type Client struct {
	http   *resty.Client
	apiKey string
	logger *logrus.Logger
}

// timeSeriesResponse is the vendor's wire format. Numeric fields arrive as
// strings.
type timeSeriesResponse struct {
	Status  string `json:"status,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

// NewClient creates a quote vendor client with retry on 5xx and transport
// errors (3 retries, backoff with jitter handled by resty).
func NewClient(baseURL, apiKey string, logger *logrus.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Client{
		http:   httpClient,
		apiKey: apiKey,
		logger: logger,
	}
}

// FetchCandles returns up to count newest-first candles for the symbol at
// the given interval.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error) {
	var result timeSeriesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     symbol,
			"interval":   interval,
			"outputsize": strconv.Itoa(count),
			"apikey":     c.apiKey,
		}).
		SetResult(&result).
		Get("/time_series")
	if err != nil {
		return nil, fmt.Errorf("fetch candles %s %s: %w", symbol, interval, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch candles %s %s: status %d: %s",
			symbol, interval, resp.StatusCode(), resp.String())
	}
	if strings.EqualFold(result.Status, "error") {
		return nil, &VendorError{Code: result.Code, Message: result.Message}
	}

	candles := make([]models.Candle, 0, len(result.Values))
	for _, v := range result.Values {
		candle, err := parseCandle(v.Datetime, v.Open, v.High, v.Low, v.Close, v.Volume)
		if err != nil {
			return nil, fmt.Errorf("fetch candles %s %s: %w", symbol, interval, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

func parseCandle(datetime, open, high, low, closePx, volume string) (models.Candle, error) {
	openTime, err := time.ParseInLocation(datetimeLayout, datetime, time.UTC)
	if err != nil {
		// Daily series use a date-only stamp.
		openTime, err = time.ParseInLocation("2006-01-02", datetime, time.UTC)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parsing candle datetime %q: %w", datetime, err)
		}
	}

	o, err := decimal.NewFromString(open)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing open %q: %w", open, err)
	}
	h, err := decimal.NewFromString(high)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing high %q: %w", high, err)
	}
	l, err := decimal.NewFromString(low)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing low %q: %w", low, err)
	}
	cl, err := decimal.NewFromString(closePx)
	if err != nil {
		return models.Candle{}, fmt.Errorf("parsing close %q: %w", closePx, err)
	}

	// Volume is absent for some instruments (metals).
	var vol int64
	if volume != "" {
		vol, err = strconv.ParseInt(volume, 10, 64)
		if err != nil {
			return models.Candle{}, fmt.Errorf("parsing volume %q: %w", volume, err)
		}
	}

	return models.Candle{
		OpenTime: openTime,
		Open:     o,
		High:     h,
		Low:      l,
		Close:    cl,
		Volume:   vol,
	}, nil
}

// Ensure Client implements Provider at compile time.
var _ Provider = (*Client)(nil)
