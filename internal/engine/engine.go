// Package engine owns the paper-trading wallet and position collections.
//
// The engine is the only mutator of wallet/position state. Every mutation
// runs under a single mutex: validate, commit in memory, persist, release.
// Persisting inside the critical section keeps the state file a prefix of
// the states observers have seen, which the crash-recovery behavior relies
// on. Persistence failures are logged but never rolled back; the in-memory
// state stays canonical for the process and the next successful save picks
// the changes up.
package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/models"
	"github.com/mikemcculloch/TradeSmart/internal/storage"
)

// Config holds the risk parameters applied to every open.
type Config struct {
	MaxPositionSizePercent decimal.Decimal
	MaxConcurrentPositions int
	Leverage               int
	MaxStopLossPercent     decimal.Decimal
}

// CloseResult is returned by Close: the settled position plus the wallet
// snapshot after PnL was applied.
type CloseResult struct {
	Position models.Position
	Wallet   models.Wallet
}

// Engine is the process-wide paper trading engine.
type Engine struct {
	mu     sync.RWMutex
	cfg    Config
	store  storage.Interface
	logger *logrus.Logger

	state  *models.EngineState
	loaded bool
}

// New creates an engine. State is loaded lazily on first use so construction
// never does I/O.
func New(cfg Config, store storage.Interface, logger *logrus.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// EnsureLoaded loads the persisted state if it has not been loaded yet.
// Idempotent; safe to call from any goroutine.
func (e *Engine) EnsureLoaded() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ensureLoadedLocked()
}

// ensureLoadedLocked must be called with the write lock held.
func (e *Engine) ensureLoadedLocked() error {
	if e.loaded {
		return nil
	}
	state, err := e.store.Load()
	if err != nil {
		return err
	}
	e.state = state
	e.loaded = true
	e.logger.Infof("engine state loaded: balance=$%s open=%d closed=%d",
		state.Wallet.AvailableBalance.StringFixed(2),
		len(state.OpenPositions), len(state.ClosedPositions))
	return nil
}

// Open validates the verdict against the risk parameters and, if admitted,
// appends a new open position, debits the wallet, and persists.
func (e *Engine) Open(verdict *models.Verdict) (*models.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoadedLocked(); err != nil {
		return nil, err
	}

	if !verdict.Direction.Tradeable() || !verdict.HasPriceLevels() {
		return nil, ErrInvalidTradeParams
	}
	if !validLevels(verdict.Direction, *verdict.EntryPrice, *verdict.StopLoss, *verdict.TakeProfit) {
		e.logger.Warnf("rejecting %s %s: levels on wrong side of entry (entry=%s sl=%s tp=%s)",
			verdict.Symbol, verdict.Direction,
			verdict.EntryPrice.String(), verdict.StopLoss.String(), verdict.TakeProfit.String())
		return nil, ErrInvalidTradeParams
	}
	if len(e.state.OpenPositions) >= e.cfg.MaxConcurrentPositions {
		return nil, ErrPositionLimitReached
	}
	if e.state.FindOpenBySymbol(verdict.Symbol) >= 0 {
		return nil, ErrDuplicateSymbol
	}

	sizeUSD := e.state.Wallet.AvailableBalance.Mul(e.cfg.MaxPositionSizePercent)
	if !sizeUSD.IsPositive() {
		return nil, ErrInsufficientBalance
	}

	entry := *verdict.EntryPrice
	stopLoss := e.capStopLoss(verdict.Symbol, verdict.Direction, entry, *verdict.StopLoss)

	leverage := decimal.NewFromInt(int64(e.cfg.Leverage))
	quantity := sizeUSD.Mul(leverage).Div(entry)

	position := models.Position{
		ID:              uuid.NewString(),
		Symbol:          verdict.Symbol,
		Direction:       verdict.Direction,
		EntryPrice:      entry,
		PositionSizeUSD: sizeUSD,
		Quantity:        quantity,
		Leverage:        e.cfg.Leverage,
		StopLoss:        stopLoss,
		TakeProfit:      *verdict.TakeProfit,
		Confidence:      verdict.Confidence,
		OpenedAt:        time.Now().UTC(),
		Reasoning:       verdict.Reasoning,
	}

	e.state.OpenPositions = append(e.state.OpenPositions, position)

	wallet := e.state.Wallet
	wallet.AvailableBalance = wallet.AvailableBalance.Sub(sizeUSD)
	wallet.TotalTrades++
	e.state.Wallet = wallet

	e.persistLocked()

	e.logger.Infof("opened %s %s: entry=%s size=$%s qty=%s sl=%s tp=%s",
		position.Symbol, position.Direction, entry.String(),
		sizeUSD.StringFixed(2), quantity.String(), stopLoss.String(), position.TakeProfit.String())

	return &position, nil
}

// validLevels checks that the exit levels sit on the correct side of entry:
// long needs SL < entry < TP, short needs TP < entry < SL. A level on the
// wrong side would trip the monitor's exit check immediately.
func validLevels(direction models.Direction, entry, stopLoss, takeProfit decimal.Decimal) bool {
	if !entry.IsPositive() {
		return false
	}
	switch direction {
	case models.DirectionLong:
		return stopLoss.LessThan(entry) && takeProfit.GreaterThan(entry)
	case models.DirectionShort:
		return takeProfit.LessThan(entry) && stopLoss.GreaterThan(entry)
	}
	return false
}

// capStopLoss bounds the stop-loss distance at MaxStopLossPercent of entry.
// A verdict stop beyond the cap is replaced by the boundary on the correct
// side, and the capping is logged.
func (e *Engine) capStopLoss(symbol string, direction models.Direction, entry, stopLoss decimal.Decimal) decimal.Decimal {
	distance := stopLoss.Sub(entry).Abs().Div(entry)
	if distance.LessThanOrEqual(e.cfg.MaxStopLossPercent) {
		return stopLoss
	}

	one := decimal.NewFromInt(1)
	capped := entry.Mul(one.Sub(e.cfg.MaxStopLossPercent))
	if direction == models.DirectionShort {
		capped = entry.Mul(one.Add(e.cfg.MaxStopLossPercent))
	}

	e.logger.Warnf("capping %s stop-loss %s -> %s (distance %s%% exceeds %s%%)",
		symbol, stopLoss.String(), capped.String(),
		distance.Mul(decimal.NewFromInt(100)).StringFixed(2),
		e.cfg.MaxStopLossPercent.Mul(decimal.NewFromInt(100)).StringFixed(0))

	return capped
}

// Close settles the open position with the given ID at exitPrice, credits
// the collateral plus PnL back to the wallet, and persists.
func (e *Engine) Close(positionID string, exitPrice decimal.Decimal, reason models.CloseReason) (*CloseResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoadedLocked(); err != nil {
		return nil, err
	}

	idx := e.state.FindOpenByID(positionID)
	if idx < 0 {
		return nil, ErrPositionNotFound
	}

	closed := e.state.OpenPositions[idx].Closed(exitPrice, reason, time.Now().UTC())
	pnl := closed.RealizedPnL

	e.state.OpenPositions = append(e.state.OpenPositions[:idx], e.state.OpenPositions[idx+1:]...)
	e.state.ClosedPositions = append(e.state.ClosedPositions, closed)

	wallet := e.state.Wallet
	returned := wallet.AvailableBalance.Add(closed.PositionSizeUSD).Add(pnl)
	// Clamp at zero: a leveraged loss larger than collateral does not take
	// the wallet negative.
	if returned.IsNegative() {
		returned = decimal.Zero
	}
	wallet.AvailableBalance = returned
	wallet.TotalRealizedPnL = wallet.TotalRealizedPnL.Add(pnl)
	if pnl.IsNegative() {
		wallet.LosingTrades++
	} else {
		wallet.WinningTrades++
	}
	e.state.Wallet = wallet

	e.persistLocked()

	e.logger.Infof("closed %s (%s): exit=%s pnl=$%s balance=$%s",
		closed.Symbol, reason, exitPrice.String(),
		pnl.StringFixed(2), wallet.AvailableBalance.StringFixed(2))

	return &CloseResult{Position: closed, Wallet: wallet}, nil
}

// persistLocked saves the state under the held lock. A save failure is
// logged at error; in-memory state remains canonical and the next
// successful save includes these changes.
func (e *Engine) persistLocked() {
	e.state.LastUpdatedAt = time.Now().UTC()
	if err := e.store.Save(e.state); err != nil {
		e.logger.WithError(err).Error("failed to persist engine state")
	}
}

// CanOpen is an advisory check: capacity remains and the balance is
// positive. The authoritative re-check happens inside Open.
func (e *Engine) CanOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.loaded {
		return true // nothing open before first load
	}
	return len(e.state.OpenPositions) < e.cfg.MaxConcurrentPositions &&
		e.state.Wallet.AvailableBalance.IsPositive()
}

// HasOpenFor is an advisory case-insensitive check for an open position on
// the symbol.
func (e *Engine) HasOpenFor(symbol string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.loaded {
		return false
	}
	return e.state.FindOpenBySymbol(symbol) >= 0
}

// GetWallet returns a snapshot of the wallet.
func (e *Engine) GetWallet() models.Wallet {
	if err := e.EnsureLoaded(); err != nil {
		return models.Wallet{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Wallet
}

// GetOpenPositions returns a defensive copy of the open positions.
func (e *Engine) GetOpenPositions() []models.Position {
	if err := e.EnsureLoaded(); err != nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Position, len(e.state.OpenPositions))
	copy(out, e.state.OpenPositions)
	return out
}

// GetClosedPositions returns a defensive copy of the closed positions.
func (e *Engine) GetClosedPositions() []models.Position {
	if err := e.EnsureLoaded(); err != nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Position, len(e.state.ClosedPositions))
	copy(out, e.state.ClosedPositions)
	return out
}

// GetState returns a defensive copy of the full engine state.
func (e *Engine) GetState() *models.EngineState {
	if err := e.EnsureLoaded(); err != nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}
