package engine

import "errors"

// Validation errors returned by Open and Close. These are admission
// rejections, not faults: callers surface them as structured rejection
// reasons and never as process failures.
var (
	// ErrInvalidTradeParams indicates a non-tradeable direction or missing
	// entry/stop-loss/take-profit levels.
	ErrInvalidTradeParams = errors.New("invalid trade parameters")
	// ErrPositionLimitReached indicates the concurrent position cap is hit.
	ErrPositionLimitReached = errors.New("position limit reached")
	// ErrDuplicateSymbol indicates an open position already exists for the symbol.
	ErrDuplicateSymbol = errors.New("open position already exists for symbol")
	// ErrInsufficientBalance indicates the computed position size is not positive.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPositionNotFound indicates no open position matches the given ID.
	ErrPositionNotFound = errors.New("position not found")
)
