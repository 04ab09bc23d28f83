// Package storage persists the paper-trading engine state as a single JSON
// document with atomic-replace semantics.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mikemcculloch/TradeSmart/internal/models"
)

const corruptTimestampLayout = "20060102150405"

// JSONStore reads and writes the engine state file.
type JSONStore struct {
	path           string
	initialBalance decimal.Decimal
	logger         *logrus.Logger
}

// NewJSONStore creates a store for the given file path. initialBalance seeds
// the wallet of the default state returned when no file exists.
func NewJSONStore(path string, initialBalance decimal.Decimal, logger *logrus.Logger) *JSONStore {
	return &JSONStore{
		path:           path,
		initialBalance: initialBalance,
		logger:         logger,
	}
}

// Load returns the persisted state. A missing file yields a fresh default
// state. An unparseable file is backed up with a timestamp suffix and also
// yields a fresh default state; that path is logged at error but is not
// fatal, so one corrupt file never wedges the engine.
func (s *JSONStore) Load() (*models.EngineState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Infof("no state file at %s, starting fresh", s.path)
		return models.NewEngineState(s.initialBalance), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state models.EngineState
	if err := json.Unmarshal(data, &state); err != nil {
		backup := fmt.Sprintf("%s.corrupted.%s", s.path, time.Now().UTC().Format(corruptTimestampLayout))
		s.logger.WithError(err).Errorf("state file is corrupt, backing up to %s", backup)
		if renameErr := os.Rename(s.path, backup); renameErr != nil {
			s.logger.WithError(renameErr).Error("failed to back up corrupt state file")
		}
		return models.NewEngineState(s.initialBalance), nil
	}

	if state.OpenPositions == nil {
		state.OpenPositions = make([]models.Position, 0)
	}
	if state.ClosedPositions == nil {
		state.ClosedPositions = make([]models.Position, 0)
	}

	return &state, nil
}

// Save serializes the full state, writes it to a sibling temp file, and
// atomically renames it over the target. A partial failure leaves the
// previous good file intact.
func (s *JSONStore) Save(state *models.EngineState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}

	return nil
}
