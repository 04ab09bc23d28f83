// Package models defines the domain types shared across the trading server:
// alerts, candles, verdicts, the paper wallet, and positions.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Monetary fields are JSON numbers on the wire, in the state file and the
// API bodies alike. The library default would quote them as strings.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Direction is the trade direction rendered by the verdict oracle.
type Direction string

const (
	// DirectionLong is a buy/long verdict.
	DirectionLong Direction = "long"
	// DirectionShort is a sell/short verdict.
	DirectionShort Direction = "short"
	// DirectionNoTrade means the oracle declined to trade.
	DirectionNoTrade Direction = "no_trade"
)

// Tradeable returns true for directions that can open a position.
func (d Direction) Tradeable() bool {
	return d == DirectionLong || d == DirectionShort
}

// ParseDirection maps a free-form direction string to a Direction.
// Anything outside long/short maps to DirectionNoTrade, so malformed
// oracle output is rejected by admission instead of erroring upstream.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return DirectionLong
	case "short", "sell":
		return DirectionShort
	default:
		return DirectionNoTrade
	}
}

// CloseReason records why a position was closed.
type CloseReason string

const (
	// CloseReasonStopLoss indicates the stop-loss threshold was crossed.
	CloseReasonStopLoss CloseReason = "stop_loss"
	// CloseReasonTakeProfit indicates the take-profit threshold was crossed.
	CloseReasonTakeProfit CloseReason = "take_profit"
	// CloseReasonManual indicates an explicit close request.
	CloseReasonManual CloseReason = "manual"
)

// Candle is a single OHLCV bar. Immutable.
type Candle struct {
	OpenTime time.Time       `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   int64           `json:"volume"`
}

// TimeframeData is an ordered (newest-first) candle series for one timeframe.
type TimeframeData struct {
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles"`
}

// Alert is an inbound webhook alert from the charting platform.
type Alert struct {
	Symbol     string          `json:"symbol"`
	Exchange   string          `json:"exchange,omitempty"`
	Action     string          `json:"action,omitempty"`
	Price      decimal.Decimal `json:"price,omitempty"`
	Interval   string          `json:"interval,omitempty"`
	Message    string          `json:"message,omitempty"`
	Secret     string          `json:"-"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Verdict is the structured judgement produced by the oracle for one alert.
type Verdict struct {
	Symbol          string           `json:"symbol"`
	Direction       Direction        `json:"direction"`
	Confidence      float64          `json:"confidence"`
	EntryPrice      *decimal.Decimal `json:"entry_price,omitempty"`
	StopLoss        *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit      *decimal.Decimal `json:"take_profit,omitempty"`
	RiskRewardRatio string           `json:"risk_reward_ratio,omitempty"`
	Reasoning       string           `json:"reasoning"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

// HasPriceLevels reports whether entry, stop-loss, and take-profit are all set.
func (v *Verdict) HasPriceLevels() bool {
	return v.EntryPrice != nil && v.StopLoss != nil && v.TakeProfit != nil
}

// Wallet is the paper-trading wallet. It is an immutable value: every
// engine mutation replaces it with a new copy.
type Wallet struct {
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	TotalRealizedPnL decimal.Decimal `json:"total_realized_pnl"`
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
}

// NewWallet creates a wallet seeded with the configured initial balance.
func NewWallet(initialBalance decimal.Decimal) Wallet {
	return Wallet{
		InitialBalance:   initialBalance,
		AvailableBalance: initialBalance,
	}
}

// WinRate returns the winning-trade ratio in percent over settled trades.
func (w Wallet) WinRate() float64 {
	settled := w.WinningTrades + w.LosingTrades
	if settled == 0 {
		return 0
	}
	return float64(w.WinningTrades) / float64(settled) * 100
}

// Position is a simulated leveraged position. Immutable once created;
// closing produces a new closed copy via Closed.
type Position struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Direction       Direction       `json:"direction"`
	EntryPrice      decimal.Decimal `json:"entry_price"`
	PositionSizeUSD decimal.Decimal `json:"position_size_usd"`
	Quantity        decimal.Decimal `json:"quantity"`
	Leverage        int             `json:"leverage"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	TakeProfit      decimal.Decimal `json:"take_profit"`
	Confidence      float64         `json:"confidence"`
	OpenedAt        time.Time       `json:"opened_at"`
	Reasoning       string          `json:"reasoning,omitempty"`

	// Set only on closed copies.
	ClosedAt    time.Time       `json:"closed_at,omitempty"`
	ExitPrice   decimal.Decimal `json:"exit_price,omitempty"`
	RealizedPnL decimal.Decimal `json:"realized_pnl,omitempty"`
	CloseReason CloseReason     `json:"close_reason,omitempty"`
}

// IsClosed reports whether this value is a closed copy.
func (p *Position) IsClosed() bool {
	return p.CloseReason != ""
}

// PnLAt computes the leveraged profit or loss at the given exit price:
// directionSign x (exit - entry) / entry x sizeUSD x leverage.
func (p *Position) PnLAt(exitPrice decimal.Decimal) decimal.Decimal {
	priceChange := exitPrice.Sub(p.EntryPrice)
	if p.Direction == DirectionShort {
		priceChange = p.EntryPrice.Sub(exitPrice)
	}
	return priceChange.
		Div(p.EntryPrice).
		Mul(p.PositionSizeUSD).
		Mul(decimal.NewFromInt(int64(p.Leverage)))
}

// ExitTrigger evaluates the SL/TP thresholds against a price.
// Stop-loss takes priority when a single candle crosses both levels.
func (p *Position) ExitTrigger(price decimal.Decimal) (CloseReason, bool) {
	switch p.Direction {
	case DirectionLong:
		if price.LessThanOrEqual(p.StopLoss) {
			return CloseReasonStopLoss, true
		}
		if price.GreaterThanOrEqual(p.TakeProfit) {
			return CloseReasonTakeProfit, true
		}
	case DirectionShort:
		if price.GreaterThanOrEqual(p.StopLoss) {
			return CloseReasonStopLoss, true
		}
		if price.LessThanOrEqual(p.TakeProfit) {
			return CloseReasonTakeProfit, true
		}
	}
	return "", false
}

// Closed returns a closed copy of the position with exit data filled in.
func (p Position) Closed(exitPrice decimal.Decimal, reason CloseReason, closedAt time.Time) Position {
	p.ClosedAt = closedAt
	p.ExitPrice = exitPrice
	p.RealizedPnL = p.PnLAt(exitPrice)
	p.CloseReason = reason
	return p
}

// HoldDuration returns how long the position was (or has been) held.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	end := now
	if !p.ClosedAt.IsZero() {
		end = p.ClosedAt
	}
	return end.Sub(p.OpenedAt)
}

// EngineState is the single unit of persistence: wallet plus the open and
// closed position collections.
type EngineState struct {
	Wallet          Wallet     `json:"wallet"`
	OpenPositions   []Position `json:"open_positions"`
	ClosedPositions []Position `json:"closed_positions"`
	LastUpdatedAt   time.Time  `json:"last_updated_at"`
}

// NewEngineState returns a fresh state with an empty book and a wallet
// seeded at initialBalance.
func NewEngineState(initialBalance decimal.Decimal) *EngineState {
	return &EngineState{
		Wallet:          NewWallet(initialBalance),
		OpenPositions:   make([]Position, 0),
		ClosedPositions: make([]Position, 0),
		LastUpdatedAt:   time.Now().UTC(),
	}
}

// Clone returns a deep-enough copy: position values are copied, so callers
// cannot mutate engine internals through the returned state.
func (s *EngineState) Clone() *EngineState {
	out := &EngineState{
		Wallet:          s.Wallet,
		OpenPositions:   make([]Position, len(s.OpenPositions)),
		ClosedPositions: make([]Position, len(s.ClosedPositions)),
		LastUpdatedAt:   s.LastUpdatedAt,
	}
	copy(out.OpenPositions, s.OpenPositions)
	copy(out.ClosedPositions, s.ClosedPositions)
	return out
}

// FindOpenBySymbol returns the index of the open position for symbol
// (case-insensitive), or -1.
func (s *EngineState) FindOpenBySymbol(symbol string) int {
	for i := range s.OpenPositions {
		if strings.EqualFold(s.OpenPositions[i].Symbol, symbol) {
			return i
		}
	}
	return -1
}

// FindOpenByID returns the index of the open position with the given ID
// (case-insensitive), or -1.
func (s *EngineState) FindOpenByID(id string) int {
	for i := range s.OpenPositions {
		if strings.EqualFold(s.OpenPositions[i].ID, id) {
			return i
		}
	}
	return -1
}
