// Package admission applies the risk gates that decide whether a verdict
// becomes a paper position. The filter never mutates state itself; the only
// mutation happens through the engine's Open, which re-checks everything
// authoritative under its lock.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/engine"
	"github.com/mikemcculloch/TradeSmart/internal/models"
	"github.com/mikemcculloch/TradeSmart/internal/notify"
	"github.com/mikemcculloch/TradeSmart/internal/symbols"
)

// TradingEngine is the slice of the engine API admission needs.
type TradingEngine interface {
	Open(verdict *models.Verdict) (*models.Position, error)
	CanOpen() bool
	HasOpenFor(symbol string) bool
	GetWallet() models.Wallet
}

// Config holds the gate parameters.
type Config struct {
	Enabled             bool
	ConfidenceThreshold float64
	AllowedBaseSymbols  []string
}

// ExecutionResult reports what admission decided for one verdict.
type ExecutionResult struct {
	Opened          bool             `json:"opened"`
	Position        *models.Position `json:"position,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	Verdict         *models.Verdict  `json:"verdict"`
}

// Filter evaluates verdicts against the risk gates in a fixed order; the
// first failing gate short-circuits with its rejection reason.
type Filter struct {
	cfg      Config
	engine   TradingEngine
	notifier notify.Notifier
	logger   *logrus.Logger
}

// NewFilter creates an admission filter.
func NewFilter(cfg Config, eng TradingEngine, notifier notify.Notifier, logger *logrus.Logger) *Filter {
	return &Filter{
		cfg:      cfg,
		engine:   eng,
		notifier: notifier,
		logger:   logger,
	}
}

// Evaluate runs the gates and opens a paper position when all of them pass.
func (f *Filter) Evaluate(ctx context.Context, verdict *models.Verdict) ExecutionResult {
	if reason, ok := f.reject(verdict); ok {
		f.logger.Infof("trade rejected for %s: %s", verdict.Symbol, reason)
		return ExecutionResult{RejectionReason: reason, Verdict: verdict}
	}

	position, err := f.engine.Open(verdict)
	if err != nil {
		return ExecutionResult{RejectionReason: rejectionReason(err), Verdict: verdict}
	}

	f.logger.Infof("paper trade admitted: %s %s @ %s",
		position.Symbol, position.Direction, position.EntryPrice.String())

	// Fire-and-forget: notification failure never affects the result.
	go f.notifier.OnPositionOpened(ctx, position, f.engine.GetWallet())

	return ExecutionResult{Opened: true, Position: position, Verdict: verdict}
}

// reject applies the pre-engine gates in order.
func (f *Filter) reject(verdict *models.Verdict) (string, bool) {
	if !f.cfg.Enabled {
		return "paper trading disabled", true
	}
	if !f.symbolAllowed(verdict.Symbol) {
		return fmt.Sprintf("symbol %s not in allowed list", verdict.Symbol), true
	}
	if !verdict.Direction.Tradeable() {
		return "verdict direction is no_trade", true
	}
	if verdict.Confidence < f.cfg.ConfidenceThreshold {
		return fmt.Sprintf("confidence %.0f below threshold %.0f",
			verdict.Confidence, f.cfg.ConfidenceThreshold), true
	}
	if !verdict.HasPriceLevels() {
		return "verdict missing entry/stop-loss/take-profit", true
	}
	if !f.engine.CanOpen() {
		return "engine cannot open: position limit reached or balance exhausted", true
	}
	if f.engine.HasOpenFor(verdict.Symbol) {
		return fmt.Sprintf("existing open position for %s", verdict.Symbol), true
	}
	return "", false
}

func (f *Filter) symbolAllowed(symbol string) bool {
	base := symbols.Base(symbol)
	for _, allowed := range f.cfg.AllowedBaseSymbols {
		if strings.EqualFold(base, allowed) {
			return true
		}
	}
	return false
}

// rejectionReason maps engine validation errors to rejection text.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidTradeParams):
		return "invalid trade parameters"
	case errors.Is(err, engine.ErrPositionLimitReached):
		return "position limit reached"
	case errors.Is(err, engine.ErrDuplicateSymbol):
		return "existing open position for symbol"
	case errors.Is(err, engine.ErrInsufficientBalance):
		return "insufficient balance"
	default:
		return fmt.Sprintf("engine rejected trade: %v", err)
	}
}
