// Package store persists canonical game state keyed by player id.
//
// Saves carry the version the caller loaded; a mismatched version fails with
// ErrConflict so two racing requests cannot both win a load-apply-save cycle.
package store

import (
	"context"
	"errors"

	"github.com/bjtj/bjtj/internal/game"
)

var (
	// ErrNotFound indicates the player has no persisted state.
	ErrNotFound = errors.New("store: not found")

	// ErrAlreadyExists indicates Create was called for an existing player.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict indicates the state changed since it was loaded. Callers
	// must reload and retry.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the persistence adapter for canonical game state.
type Store interface {
	// Load returns the state and the version to pass back to Save.
	Load(ctx context.Context, playerID string) (*game.GameState, uint64, error)

	// Save persists the state if version still matches the stored record.
	Save(ctx context.Context, playerID string, state *game.GameState, version uint64) error

	// Create persists the initial state for a new player.
	Create(ctx context.Context, playerID string, state *game.GameState) error
}
