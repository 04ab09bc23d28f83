package admission

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikemcculloch/TradeSmart/internal/engine"
	"github.com/mikemcculloch/TradeSmart/internal/models"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeEngine struct {
	canOpen    bool
	hasOpenFor bool
	openErr    error
	opened     []*models.Verdict
}

func (f *fakeEngine) Open(v *models.Verdict) (*models.Position, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened = append(f.opened, v)
	return &models.Position{
		ID:         "pos-1",
		Symbol:     v.Symbol,
		Direction:  v.Direction,
		EntryPrice: *v.EntryPrice,
	}, nil
}

func (f *fakeEngine) CanOpen() bool            { return f.canOpen }
func (f *fakeEngine) HasOpenFor(string) bool   { return f.hasOpenFor }
func (f *fakeEngine) GetWallet() models.Wallet { return models.Wallet{} }

type fakeNotifier struct {
	opened chan *models.Position
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{opened: make(chan *models.Position, 1)}
}

func (f *fakeNotifier) OnAlertAnalyzed(context.Context, *models.Alert, *models.Verdict) {}
func (f *fakeNotifier) OnPositionClosed(context.Context, *models.Position, models.Wallet) {
}
func (f *fakeNotifier) OnPositionOpened(_ context.Context, p *models.Position, _ models.Wallet) {
	f.opened <- p
}

func defaultFilterConfig() Config {
	return Config{
		Enabled:             true,
		ConfidenceThreshold: 80,
		AllowedBaseSymbols:  []string{"BTC", "XAU", "XAG", "XPT"},
	}
}

func tradeableVerdict() *models.Verdict {
	return &models.Verdict{
		Symbol:     "BTC/USD",
		Direction:  models.DirectionLong,
		Confidence: 85,
		EntryPrice: decPtr("100"),
		StopLoss:   decPtr("95"),
		TakeProfit: decPtr("110"),
	}
}

func TestEvaluateAdmitsAndNotifies(t *testing.T) {
	eng := &fakeEngine{canOpen: true}
	notifier := newFakeNotifier()
	f := NewFilter(defaultFilterConfig(), eng, notifier, testLogger())

	result := f.Evaluate(context.Background(), tradeableVerdict())

	require.True(t, result.Opened)
	require.NotNil(t, result.Position)
	assert.Empty(t, result.RejectionReason)
	assert.Len(t, eng.opened, 1)

	select {
	case p := <-notifier.opened:
		assert.Equal(t, "BTC/USD", p.Symbol)
	case <-time.After(time.Second):
		t.Fatal("expected an opened notification")
	}
}

func TestEvaluateGates(t *testing.T) {
	cases := []struct {
		name   string
		cfg    func(*Config)
		engine func(*fakeEngine)
		mutate func(*models.Verdict)
		reason string
	}{
		{
			name:   "disabled",
			cfg:    func(c *Config) { c.Enabled = false },
			reason: "paper trading disabled",
		},
		{
			name:   "symbol not allowed",
			mutate: func(v *models.Verdict) { v.Symbol = "ETH/USD" },
			reason: "not in allowed list",
		},
		{
			name:   "no-trade verdict",
			mutate: func(v *models.Verdict) { v.Direction = models.DirectionNoTrade },
			reason: "no_trade",
		},
		{
			name:   "confidence below threshold",
			mutate: func(v *models.Verdict) { v.Confidence = 70 },
			reason: "confidence 70 below threshold 80",
		},
		{
			name:   "missing price levels",
			mutate: func(v *models.Verdict) { v.StopLoss = nil },
			reason: "missing entry/stop-loss/take-profit",
		},
		{
			name:   "engine at capacity",
			engine: func(e *fakeEngine) { e.canOpen = false },
			reason: "cannot open",
		},
		{
			name:   "duplicate symbol",
			engine: func(e *fakeEngine) { e.hasOpenFor = true },
			reason: "existing open position",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultFilterConfig()
			if tc.cfg != nil {
				tc.cfg(&cfg)
			}
			eng := &fakeEngine{canOpen: true}
			if tc.engine != nil {
				tc.engine(eng)
			}
			v := tradeableVerdict()
			if tc.mutate != nil {
				tc.mutate(v)
			}

			f := NewFilter(cfg, eng, newFakeNotifier(), testLogger())
			result := f.Evaluate(context.Background(), v)

			assert.False(t, result.Opened)
			assert.Nil(t, result.Position)
			assert.Contains(t, result.RejectionReason, tc.reason)
			assert.Empty(t, eng.opened, "engine must not be asked to open")
		})
	}
}

func TestEvaluateGateOrder(t *testing.T) {
	// A verdict that fails several gates reports the first one.
	cfg := defaultFilterConfig()
	cfg.Enabled = false
	v := tradeableVerdict()
	v.Confidence = 10
	v.StopLoss = nil

	f := NewFilter(cfg, &fakeEngine{}, newFakeNotifier(), testLogger())
	result := f.Evaluate(context.Background(), v)
	assert.Equal(t, "paper trading disabled", result.RejectionReason)
}

func TestEvaluateAllowlistIsCaseInsensitive(t *testing.T) {
	cfg := defaultFilterConfig()
	cfg.AllowedBaseSymbols = []string{"btc"}

	eng := &fakeEngine{canOpen: true}
	f := NewFilter(cfg, eng, newFakeNotifier(), testLogger())

	result := f.Evaluate(context.Background(), tradeableVerdict())
	assert.True(t, result.Opened)
}

func TestEvaluateMapsEngineErrors(t *testing.T) {
	cases := []struct {
		err    error
		reason string
	}{
		{engine.ErrInvalidTradeParams, "invalid trade parameters"},
		{engine.ErrPositionLimitReached, "position limit reached"},
		{engine.ErrDuplicateSymbol, "existing open position for symbol"},
		{engine.ErrInsufficientBalance, "insufficient balance"},
	}

	for _, tc := range cases {
		eng := &fakeEngine{canOpen: true, openErr: tc.err}
		f := NewFilter(defaultFilterConfig(), eng, newFakeNotifier(), testLogger())

		result := f.Evaluate(context.Background(), tradeableVerdict())
		assert.False(t, result.Opened)
		assert.Equal(t, tc.reason, result.RejectionReason)
	}
}
