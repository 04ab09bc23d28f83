package storage

import "github.com/mikemcculloch/TradeSmart/internal/models"

// Interface defines the contract for engine state persistence.
//
// Implementations are NOT required to be goroutine-safe: the trading engine
// serializes every Save under its own mutex, and Load is called once during
// lazy initialization inside that same critical section.
type Interface interface {
	// Load returns the persisted engine state, or a fresh default state
	// when no file exists yet or the existing file is unreadable.
	Load() (*models.EngineState, error)

	// Save atomically replaces the persisted state with s.
	Save(s *models.EngineState) error
}

// Ensure JSONStore implements Interface.
var _ Interface = (*JSONStore)(nil)
