// Package oracle submits alerts with multi-timeframe market context to an
// LLM and parses the structured trade verdict out of the reply.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/models"
	"github.com/mikemcculloch/TradeSmart/internal/retry"
)

const apiVersion = "2023-06-01"

// ErrEmptyResponse is returned when the model reply carries no content.
var ErrEmptyResponse = errors.New("oracle returned empty response")

// Oracle analyzes an alert against market data and returns a verdict.
type Oracle interface {
	Analyze(ctx context.Context, alert *models.Alert, marketData []models.TimeframeData) (*models.Verdict, error)
}

// Config holds the oracle connection settings.
type Config struct {
	BaseURL   string
	Model     string
	MaxTokens int
	APIKey    string
}

// Client talks to the /v1/messages completion endpoint.
type Client struct {
	http   *resty.Client
	cfg    Config
	retry  retry.Config
	logger *logrus.Logger
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClient creates an oracle client. LLM calls are slow, so the timeout is
// generous; transient failures are retried by the caller-side retry loop.
func NewClient(cfg Config, logger *logrus.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(120 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", apiVersion)

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		retry:  retry.DefaultConfig,
		logger: logger,
	}
}

// Analyze submits the alert plus per-timeframe OHLCV tables and parses the
// verdict JSON out of the reply.
func (c *Client) Analyze(ctx context.Context, alert *models.Alert, marketData []models.TimeframeData) (*models.Verdict, error) {
	reqBody := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: buildUserPrompt(alert, marketData)},
		},
	}

	reply, err := retry.Do(ctx, c.retry, c.logger, "oracle analyze", func(ctx context.Context) (string, error) {
		return c.complete(ctx, &reqBody)
	})
	if err != nil {
		return nil, err
	}

	return parseVerdict(reply, alert.Symbol)
}

func (c *Client) complete(ctx context.Context, reqBody *messagesRequest) (string, error) {
	var result messagesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&result).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("oracle request: status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(result.Content) == 0 || result.Content[0].Text == "" {
		return "", ErrEmptyResponse
	}

	return result.Content[0].Text, nil
}

var _ Oracle = (*Client)(nil)
