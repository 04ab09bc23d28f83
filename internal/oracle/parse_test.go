package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

const plainVerdictJSON = `{
  "symbol": "BTC/USD",
  "direction": "long",
  "confidence": 85,
  "entryPrice": 64250.50,
  "stopLoss": 63000,
  "takeProfit": 66500,
  "riskRewardRatio": "1:1.8",
  "reasoning": "Higher timeframe uptrend intact."
}`

func TestParseVerdictPlainJSON(t *testing.T) {
	v, err := parseVerdict(plainVerdictJSON, "BTC/USD")
	require.NoError(t, err)

	assert.Equal(t, "BTC/USD", v.Symbol)
	assert.Equal(t, models.DirectionLong, v.Direction)
	assert.Equal(t, 85.0, v.Confidence)
	require.True(t, v.HasPriceLevels())
	assert.Equal(t, "64250.5", v.EntryPrice.String())
	assert.Equal(t, "63000", v.StopLoss.String())
	assert.Equal(t, "66500", v.TakeProfit.String())
	assert.Equal(t, "1:1.8", v.RiskRewardRatio)
	assert.False(t, v.AnalyzedAt.IsZero())
}

func TestParseVerdictFencedJSON(t *testing.T) {
	for _, fence := range []string{
		"```json\n" + plainVerdictJSON + "\n```",
		"```\n" + plainVerdictJSON + "\n```",
	} {
		v, err := parseVerdict(fence, "BTC/USD")
		require.NoError(t, err)
		assert.Equal(t, models.DirectionLong, v.Direction)
		assert.Equal(t, "64250.5", v.EntryPrice.String())
	}
}

func TestParseVerdictWithSurroundingProse(t *testing.T) {
	reply := "Here is my analysis:\n" + plainVerdictJSON + "\nLet me know if you need more."
	v, err := parseVerdict(reply, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 85.0, v.Confidence)
}

func TestParseVerdictStringPrices(t *testing.T) {
	// Models sometimes quote numeric fields.
	reply := `{"symbol":"XAU/USD","direction":"short","confidence":"not-a-number"}`
	_, err := parseVerdict(reply, "XAU/USD")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)

	reply = `{"symbol":"XAU/USD","direction":"short","confidence":82,"entryPrice":"2400.25","stopLoss":"2420","takeProfit":"2360"}`
	v, err := parseVerdict(reply, "XAU/USD")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionShort, v.Direction)
	assert.Equal(t, "2400.25", v.EntryPrice.String())
}

func TestParseVerdictNoTradeWithoutLevels(t *testing.T) {
	reply := `{"symbol":"BTC/USD","direction":"no_trade","confidence":30,"reasoning":"chop"}`
	v, err := parseVerdict(reply, "BTC/USD")
	require.NoError(t, err)

	assert.Equal(t, models.DirectionNoTrade, v.Direction)
	assert.False(t, v.HasPriceLevels())
	assert.Nil(t, v.EntryPrice)
}

func TestParseVerdictUnknownDirectionMapsToNoTrade(t *testing.T) {
	reply := `{"symbol":"BTC/USD","direction":"sideways","confidence":50}`
	v, err := parseVerdict(reply, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNoTrade, v.Direction)
}

func TestParseVerdictBuySellAliases(t *testing.T) {
	v, err := parseVerdict(`{"direction":"buy","confidence":90}`, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionLong, v.Direction)

	v, err = parseVerdict(`{"direction":"SELL","confidence":90}`, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, models.DirectionShort, v.Direction)
}

func TestParseVerdictSymbolFallback(t *testing.T) {
	v, err := parseVerdict(`{"direction":"long","confidence":90,"symbol":"  "}`, "XAG/USD")
	require.NoError(t, err)
	assert.Equal(t, "XAG/USD", v.Symbol)
}

func TestParseVerdictClampsConfidence(t *testing.T) {
	v, err := parseVerdict(`{"direction":"long","confidence":150}`, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 100.0, v.Confidence)

	v, err = parseVerdict(`{"direction":"long","confidence":-5}`, "BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Confidence)
}

func TestParseVerdictNoObject(t *testing.T) {
	for _, reply := range []string{"", "I cannot analyze this.", "```json\n```"} {
		_, err := parseVerdict(reply, "BTC/USD")
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), "reply %q", reply)
		assert.Contains(t, parseErr.Error(), "parse error")
	}
}

func TestParseVerdictMalformedJSON(t *testing.T) {
	_, err := parseVerdict(`{"direction":"long","confidence":`, "BTC/USD")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}
