package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

type sink struct {
	payloads chan payload
}

func newSink(t *testing.T) (*httptest.Server, *sink) {
	t.Helper()
	s := &sink{payloads: make(chan payload, 4)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		s.payloads <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, s
}

func (s *sink) next(t *testing.T) payload {
	t.Helper()
	select {
	case p := <-s.payloads:
		return p
	case <-time.After(time.Second):
		t.Fatal("expected a webhook delivery")
		return payload{}
	}
}

func TestOnAlertAnalyzed(t *testing.T) {
	srv, sink := newSink(t)
	n := NewWebhookNotifier(srv.URL, testLogger())

	alert := &models.Alert{Symbol: "BTCUSDT"}
	verdict := &models.Verdict{
		Symbol:          "BTC/USD",
		Direction:       models.DirectionLong,
		Confidence:      85,
		EntryPrice:      decPtr("64250"),
		StopLoss:        decPtr("63000"),
		TakeProfit:      decPtr("66500"),
		RiskRewardRatio: "1:1.8",
		Reasoning:       "uptrend",
		AnalyzedAt:      time.Now().UTC(),
	}

	n.OnAlertAnalyzed(context.Background(), alert, verdict)

	p := sink.next(t)
	assert.Equal(t, "TradeSmart", p.Username)
	require.Len(t, p.Embeds, 1)
	e := p.Embeds[0]
	assert.Contains(t, e.Title, "BTC/USD")
	assert.Equal(t, "uptrend", e.Description)
	assert.Equal(t, colorLong, e.Color)

	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "Direction")
	assert.Contains(t, names, "Confidence")
	assert.Contains(t, names, "Entry")
	assert.Contains(t, names, "R:R")
}

func TestOnAlertAnalyzedOmitsMissingLevels(t *testing.T) {
	srv, sink := newSink(t)
	n := NewWebhookNotifier(srv.URL, testLogger())

	n.OnAlertAnalyzed(context.Background(), &models.Alert{Symbol: "BTCUSDT"}, &models.Verdict{
		Symbol:     "BTC/USD",
		Direction:  models.DirectionNoTrade,
		Confidence: 30,
		Reasoning:  "chop",
	})

	p := sink.next(t)
	e := p.Embeds[0]
	assert.Equal(t, colorNeutral, e.Color)
	for _, f := range e.Fields {
		assert.NotEqual(t, "Entry", f.Name)
		assert.NotEqual(t, "Stop Loss", f.Name)
	}
}

func TestOnPositionOpened(t *testing.T) {
	srv, sink := newSink(t)
	n := NewWebhookNotifier(srv.URL, testLogger())

	n.OnPositionOpened(context.Background(), &models.Position{
		ID:              "pos-1",
		Symbol:          "BTC/USD",
		Direction:       models.DirectionShort,
		EntryPrice:      dec("64250"),
		PositionSizeUSD: dec("100"),
		Quantity:        dec("0.00311282"),
		Leverage:        2,
		StopLoss:        dec("65000"),
		TakeProfit:      dec("62000"),
		Confidence:      85,
		OpenedAt:        time.Now().UTC(),
	}, models.Wallet{AvailableBalance: dec("900")})

	p := sink.next(t)
	e := p.Embeds[0]
	assert.Contains(t, e.Title, "opened")
	assert.Equal(t, colorShort, e.Color)

	values := map[string]string{}
	for _, f := range e.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "$100.00 x2", values["Size"])
	assert.Equal(t, "$900.00", values["Balance"])
}

func TestOnPositionClosed(t *testing.T) {
	srv, sink := newSink(t)
	n := NewWebhookNotifier(srv.URL, testLogger())

	opened := time.Now().UTC().Add(-2 * time.Hour)
	n.OnPositionClosed(context.Background(), &models.Position{
		ID:          "pos-1",
		Symbol:      "BTC/USD",
		Direction:   models.DirectionLong,
		EntryPrice:  dec("100"),
		OpenedAt:    opened,
		ClosedAt:    opened.Add(2 * time.Hour),
		ExitPrice:   dec("95"),
		RealizedPnL: dec("-10"),
		CloseReason: models.CloseReasonStopLoss,
	}, models.Wallet{
		AvailableBalance: dec("990"),
		WinningTrades:    0,
		LosingTrades:     1,
	})

	p := sink.next(t)
	e := p.Embeds[0]
	assert.Contains(t, e.Title, "stop_loss")
	assert.Equal(t, colorLoss, e.Color)

	values := map[string]string{}
	for _, f := range e.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "$-10.00", values["PnL"])
	assert.Equal(t, "2h0m0s", values["Held"])
	assert.Equal(t, "0W / 1L (0.0%)", values["Record"])
}

func TestTruncatesLongReasoning(t *testing.T) {
	srv, sink := newSink(t)
	n := NewWebhookNotifier(srv.URL, testLogger())

	n.OnAlertAnalyzed(context.Background(), &models.Alert{Symbol: "BTCUSDT"}, &models.Verdict{
		Symbol:    "BTC/USD",
		Direction: models.DirectionLong,
		Reasoning: strings.Repeat("x", 5000),
	})

	p := sink.next(t)
	desc := p.Embeds[0].Description
	assert.LessOrEqual(t, len(desc), maxReasoningChars+len("..."))
	assert.True(t, strings.HasSuffix(desc, "..."))
}

func TestDisabledNotifierSkipsDelivery(t *testing.T) {
	n := NewWebhookNotifier("", testLogger())
	assert.False(t, n.Enabled())

	// Must not panic or attempt any network call.
	n.OnAlertAnalyzed(context.Background(), &models.Alert{}, &models.Verdict{})
	n.OnPositionOpened(context.Background(), &models.Position{}, models.Wallet{})
	n.OnPositionClosed(context.Background(), &models.Position{}, models.Wallet{})
}

func TestDeliveryFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, testLogger())
	// A failing sink must never propagate.
	n.OnPositionOpened(context.Background(), &models.Position{
		EntryPrice:      dec("1"),
		PositionSizeUSD: dec("1"),
		Quantity:        dec("1"),
		StopLoss:        dec("1"),
		TakeProfit:      dec("1"),
	}, models.Wallet{})
}
