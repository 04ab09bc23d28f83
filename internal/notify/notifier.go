// Package notify posts best-effort event cards to a configured webhook sink.
// Delivery failures are logged at warning and swallowed; notification is
// never allowed to fail a trade path.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/models"
	"github.com/mikemcculloch/TradeSmart/internal/util"
)

// maxReasoningChars bounds the free-text reasoning field in payloads.
const maxReasoningChars = 1000

// Embed colors (decimal RGB, Discord convention).
const (
	colorNeutral = 0x95a5a6
	colorLong    = 0x2ecc71
	colorShort   = 0xe74c3c
	colorProfit  = 0x2ecc71
	colorLoss    = 0xe74c3c
)

// Notifier delivers alert/open/close event notifications.
type Notifier interface {
	OnAlertAnalyzed(ctx context.Context, alert *models.Alert, verdict *models.Verdict)
	OnPositionOpened(ctx context.Context, position *models.Position, wallet models.Wallet)
	OnPositionClosed(ctx context.Context, position *models.Position, wallet models.Wallet)
}

// WebhookNotifier posts {username, embeds} payloads to a webhook URL.
// A WebhookNotifier with an empty URL is valid and skips every delivery.
type WebhookNotifier struct {
	http       *resty.Client
	webhookURL string
	logger     *logrus.Logger
}

type payload struct {
	Username string  `json:"username"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color"`
	Fields      []field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

type field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// NewWebhookNotifier creates a notifier for the given sink URL. An empty URL
// disables delivery without erroring.
func NewWebhookNotifier(webhookURL string, logger *logrus.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		http:       resty.New().SetTimeout(10 * time.Second),
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// Enabled reports whether a sink is configured.
func (n *WebhookNotifier) Enabled() bool {
	return n.webhookURL != ""
}

// OnAlertAnalyzed posts the verdict rendered for an inbound alert.
func (n *WebhookNotifier) OnAlertAnalyzed(ctx context.Context, alert *models.Alert, verdict *models.Verdict) {
	color := colorNeutral
	switch verdict.Direction {
	case models.DirectionLong:
		color = colorLong
	case models.DirectionShort:
		color = colorShort
	}

	fields := []field{
		{Name: "Direction", Value: string(verdict.Direction), Inline: true},
		{Name: "Confidence", Value: fmt.Sprintf("%.0f%%", verdict.Confidence), Inline: true},
	}
	if verdict.EntryPrice != nil {
		fields = append(fields, field{Name: "Entry", Value: verdict.EntryPrice.String(), Inline: true})
	}
	if verdict.StopLoss != nil {
		fields = append(fields, field{Name: "Stop Loss", Value: verdict.StopLoss.String(), Inline: true})
	}
	if verdict.TakeProfit != nil {
		fields = append(fields, field{Name: "Take Profit", Value: verdict.TakeProfit.String(), Inline: true})
	}
	if verdict.RiskRewardRatio != "" {
		fields = append(fields, field{Name: "R:R", Value: verdict.RiskRewardRatio, Inline: true})
	}

	n.post(ctx, payload{
		Username: "TradeSmart",
		Embeds: []embed{{
			Title:       fmt.Sprintf("Alert analyzed: %s", verdict.Symbol),
			Description: util.Truncate(verdict.Reasoning, maxReasoningChars),
			Color:       color,
			Fields:      fields,
			Timestamp:   verdict.AnalyzedAt.UTC().Format(time.RFC3339),
		}},
	})
}

// OnPositionOpened posts the freshly opened paper position.
func (n *WebhookNotifier) OnPositionOpened(ctx context.Context, position *models.Position, wallet models.Wallet) {
	color := colorLong
	if position.Direction == models.DirectionShort {
		color = colorShort
	}

	n.post(ctx, payload{
		Username: "TradeSmart",
		Embeds: []embed{{
			Title:       fmt.Sprintf("Paper position opened: %s %s", position.Symbol, position.Direction),
			Description: util.Truncate(position.Reasoning, maxReasoningChars),
			Color:       color,
			Fields: []field{
				{Name: "Entry", Value: position.EntryPrice.String(), Inline: true},
				{Name: "Size", Value: fmt.Sprintf("$%s x%d", position.PositionSizeUSD.StringFixed(2), position.Leverage), Inline: true},
				{Name: "Quantity", Value: position.Quantity.StringFixed(8), Inline: true},
				{Name: "Stop Loss", Value: position.StopLoss.String(), Inline: true},
				{Name: "Take Profit", Value: position.TakeProfit.String(), Inline: true},
				{Name: "Confidence", Value: fmt.Sprintf("%.0f%%", position.Confidence), Inline: true},
				{Name: "Balance", Value: "$" + wallet.AvailableBalance.StringFixed(2), Inline: true},
			},
			Timestamp: position.OpenedAt.UTC().Format(time.RFC3339),
		}},
	})
}

// OnPositionClosed posts the settled position with PnL and running stats.
func (n *WebhookNotifier) OnPositionClosed(ctx context.Context, position *models.Position, wallet models.Wallet) {
	color := colorProfit
	if position.RealizedPnL.IsNegative() {
		color = colorLoss
	}

	n.post(ctx, payload{
		Username: "TradeSmart",
		Embeds: []embed{{
			Title: fmt.Sprintf("Paper position closed: %s (%s)", position.Symbol, position.CloseReason),
			Color: color,
			Fields: []field{
				{Name: "Direction", Value: string(position.Direction), Inline: true},
				{Name: "Entry", Value: position.EntryPrice.String(), Inline: true},
				{Name: "Exit", Value: position.ExitPrice.String(), Inline: true},
				{Name: "PnL", Value: "$" + position.RealizedPnL.StringFixed(2), Inline: true},
				{Name: "Held", Value: position.HoldDuration(position.ClosedAt).Round(time.Second).String(), Inline: true},
				{Name: "Balance", Value: "$" + wallet.AvailableBalance.StringFixed(2), Inline: true},
				{Name: "Record", Value: fmt.Sprintf("%dW / %dL (%.1f%%)", wallet.WinningTrades, wallet.LosingTrades, wallet.WinRate()), Inline: true},
			},
			Timestamp: position.ClosedAt.UTC().Format(time.RFC3339),
		}},
	})
}

// post performs the best-effort delivery. Any non-2xx or transport error is
// logged at warning and swallowed.
func (n *WebhookNotifier) post(ctx context.Context, p payload) {
	if !n.Enabled() {
		n.logger.Debug("notifier not configured, skipping delivery")
		return
	}

	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(p).
		Post(n.webhookURL)
	if err != nil {
		n.logger.WithError(err).Warn("notification delivery failed")
		return
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		n.logger.Warnf("notification sink answered %d: %s", resp.StatusCode(), resp.String())
	}
}

var _ Notifier = (*WebhookNotifier)(nil)
