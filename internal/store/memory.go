package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bjtj/bjtj/internal/game"
)

// MemoryStore is an in-memory Store for tests and dev mode. Records are
// stored as encoded JSON so callers can never alias stored state.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	data    []byte
	version uint64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]memoryRecord)}
}

func (m *MemoryStore) Load(ctx context.Context, playerID string) (*game.GameState, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[playerID]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}

	var state game.GameState
	if err := json.Unmarshal(rec.data, &state); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", game.ErrMalformedState, err)
	}
	return &state, rec.version, nil
}

func (m *MemoryStore) Save(ctx context.Context, playerID string, state *game.GameState, version uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[playerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}
	if rec.version != version {
		return fmt.Errorf("%w: have %d, want %d", ErrConflict, version, rec.version)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	m.records[playerID] = memoryRecord{data: data, version: version + 1}
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, playerID string, state *game.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[playerID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, playerID)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	m.records[playerID] = memoryRecord{data: data, version: 1}
	return nil
}
