// Package monitor runs the periodic stop-loss/take-profit loop over the
// open paper positions.
package monitor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/engine"
	"github.com/mikemcculloch/TradeSmart/internal/marketdata"
	"github.com/mikemcculloch/TradeSmart/internal/models"
	"github.com/mikemcculloch/TradeSmart/internal/notify"
)

// staleCandleAge is the candle age past which the market is likely closed.
// Stale positions are still evaluated; the warning is informational.
const staleCandleAge = 5 * time.Minute

// monitorInterval is the candle resolution polled per tick.
const monitorTimeframe = "1min"

// PositionEngine is the slice of the engine API the monitor needs.
type PositionEngine interface {
	GetOpenPositions() []models.Position
	Close(positionID string, exitPrice decimal.Decimal, reason models.CloseReason) (*engine.CloseResult, error)
}

// Monitor polls the latest candle per open position and closes positions
// whose stop-loss or take-profit was crossed.
type Monitor struct {
	engine   PositionEngine
	quotes   marketdata.Provider
	notifier notify.Notifier
	interval time.Duration
	logger   *logrus.Logger
}

// New creates a monitor ticking at the given interval.
func New(eng PositionEngine, quotes marketdata.Provider, notifier notify.Notifier, interval time.Duration, logger *logrus.Logger) *Monitor {
	return &Monitor{
		engine:   eng,
		quotes:   quotes,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// Run loops until ctx is canceled. Per-position errors never stop the loop,
// and an error in one tick never skips subsequent ticks.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Infof("position monitor started, interval %s", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("position monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick evaluates every open position once.
func (m *Monitor) tick(ctx context.Context) {
	positions := m.engine.GetOpenPositions()
	if len(positions) == 0 {
		return
	}
	m.logger.Debugf("monitor tick: checking %d open position(s)", len(positions))

	for i := range positions {
		m.checkPosition(ctx, &positions[i])
	}
}

// checkPosition polls the latest candle for one position and closes it when
// an exit threshold was crossed. Errors are logged and skip only this
// position for this tick.
func (m *Monitor) checkPosition(ctx context.Context, position *models.Position) {
	candles, err := m.quotes.FetchCandles(ctx, position.Symbol, monitorTimeframe, 1)
	if err != nil {
		m.logger.WithError(err).Warnf("skipping %s this tick: candle fetch failed", position.Symbol)
		return
	}
	if len(candles) == 0 {
		m.logger.Warnf("skipping %s this tick: vendor returned no candles", position.Symbol)
		return
	}

	candle := candles[0]
	if age := time.Since(candle.OpenTime); age > staleCandleAge {
		m.logger.Warnf("latest %s candle is %s old, market may be closed", position.Symbol, age.Round(time.Second))
	}

	price := candle.Close
	reason, triggered := position.ExitTrigger(price)
	if !triggered {
		m.logger.Debugf("%s holding: price=%s sl=%s tp=%s",
			position.Symbol, price.String(), position.StopLoss.String(), position.TakeProfit.String())
		return
	}

	result, err := m.engine.Close(position.ID, price, reason)
	if err != nil {
		m.logger.WithError(err).Errorf("failed to close %s on %s", position.Symbol, reason)
		return
	}

	go m.notifier.OnPositionClosed(context.WithoutCancel(ctx), &result.Position, result.Wallet)
}
