package oracle

import (
	"fmt"
	"strings"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

// maxCandlesPerTable caps each OHLCV table to bound prompt size.
const maxCandlesPerTable = 50

const systemPrompt = `You are a disciplined multi-timeframe technical analyst for leveraged paper trading.
You receive a charting-platform alert plus OHLCV candles across several timeframes.
Weigh the higher timeframes for trend context and the lower timeframes for entry timing.
Only call a trade when the timeframes align; otherwise answer no_trade.

Respond with exactly one JSON object and nothing else:
{
  "symbol": "...",
  "direction": "long" | "short" | "no_trade",
  "confidence": 0-100,
  "entryPrice": number or null,
  "stopLoss": number or null,
  "takeProfit": number or null,
  "riskRewardRatio": "1:2",
  "reasoning": "..."
}`

// buildUserPrompt enumerates the alert and a compact OHLCV table per
// timeframe, newest candles first.
func buildUserPrompt(alert *models.Alert, marketData []models.TimeframeData) string {
	var b strings.Builder

	b.WriteString("ALERT\n")
	fmt.Fprintf(&b, "Symbol: %s\n", alert.Symbol)
	if alert.Exchange != "" {
		fmt.Fprintf(&b, "Exchange: %s\n", alert.Exchange)
	}
	if alert.Action != "" {
		fmt.Fprintf(&b, "Action hint: %s\n", alert.Action)
	}
	if !alert.Price.IsZero() {
		fmt.Fprintf(&b, "Alert price: %s\n", alert.Price.String())
	}
	if alert.Interval != "" {
		fmt.Fprintf(&b, "Alert interval: %s\n", alert.Interval)
	}
	if alert.Message != "" {
		fmt.Fprintf(&b, "Message: %s\n", alert.Message)
	}

	for _, tf := range marketData {
		fmt.Fprintf(&b, "\n=== %s (newest first) ===\n", tf.Timeframe)
		b.WriteString("time | open | high | low | close | volume\n")

		candles := tf.Candles
		if len(candles) > maxCandlesPerTable {
			candles = candles[:maxCandlesPerTable]
		}
		for _, c := range candles {
			fmt.Fprintf(&b, "%s | %s | %s | %s | %s | %d\n",
				c.OpenTime.UTC().Format("2006-01-02 15:04"),
				c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume)
		}
	}

	b.WriteString("\nRender your verdict as the single JSON object described in the system prompt.")
	return b.String()
}
