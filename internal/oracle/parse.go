package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

// ParseError indicates the model reply could not be parsed into a verdict.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("oracle parse error: %s", e.Reason)
}

// codeFenceRe matches a reply wrapped in a ```json fenced block.
var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```$")

// extractJSONObject pulls exactly one JSON object out of a model reply,
// tolerating a leading/trailing code fence and prose around the object.
func extractJSONObject(reply string) (string, error) {
	s := strings.TrimSpace(reply)

	if matches := codeFenceRe.FindStringSubmatch(s); len(matches) > 1 {
		s = strings.TrimSpace(matches[1])
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", &ParseError{Reason: "no JSON object in reply", Raw: reply}
	}

	return s[start : end+1], nil
}

// rawVerdict is the JSON schema the model is instructed to produce.
type rawVerdict struct {
	Symbol          string           `json:"symbol"`
	Direction       string           `json:"direction"`
	Confidence      float64          `json:"confidence"`
	EntryPrice      *decimal.Decimal `json:"entryPrice"`
	StopLoss        *decimal.Decimal `json:"stopLoss"`
	TakeProfit      *decimal.Decimal `json:"takeProfit"`
	RiskRewardRatio string           `json:"riskRewardRatio"`
	Reasoning       string           `json:"reasoning"`
}

// parseVerdict converts a model reply into a Verdict. Unknown direction
// strings map to NoTrade rather than erroring, so admission rejects them
// instead of surfacing a 500 to the webhook caller.
func parseVerdict(reply, fallbackSymbol string) (*models.Verdict, error) {
	obj, err := extractJSONObject(reply)
	if err != nil {
		return nil, err
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("decoding verdict: %v", err), Raw: reply}
	}

	symbol := strings.TrimSpace(raw.Symbol)
	if symbol == "" {
		symbol = fallbackSymbol
	}

	return &models.Verdict{
		Symbol:          symbol,
		Direction:       models.ParseDirection(raw.Direction),
		Confidence:      clampConfidence(raw.Confidence),
		EntryPrice:      raw.EntryPrice,
		StopLoss:        raw.StopLoss,
		TakeProfit:      raw.TakeProfit,
		RiskRewardRatio: raw.RiskRewardRatio,
		Reasoning:       raw.Reasoning,
		AnalyzedAt:      time.Now().UTC(),
	}, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
