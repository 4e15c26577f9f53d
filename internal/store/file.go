package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bjtj/bjtj/internal/fileutil"
	"github.com/bjtj/bjtj/internal/game"
)

// FileStore keeps one JSON record per player under a directory, written
// atomically so a crash mid-save never leaves a torn file. Version checks
// are serialized in-process; the directory must not be shared between
// server processes.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

type fileRecord struct {
	Version uint64          `json:"version"`
	State   *game.GameState `json:"state"`
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(playerID string) string {
	// Player ids are 0x-prefixed hex, safe as filenames once lowercased.
	return filepath.Join(f.dir, strings.ToLower(playerID)+".json")
}

func (f *FileStore) read(playerID string) (*fileRecord, error) {
	data, err := os.ReadFile(f.path(playerID))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, playerID)
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", game.ErrMalformedState, err)
	}
	if rec.State == nil {
		return nil, fmt.Errorf("%w: record has no state", game.ErrMalformedState)
	}
	return &rec, nil
}

func (f *FileStore) write(playerID string, rec *fileRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return fileutil.WriteFileAtomic(f.path(playerID), data, 0o644)
}

func (f *FileStore) Load(ctx context.Context, playerID string) (*game.GameState, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.read(playerID)
	if err != nil {
		return nil, 0, err
	}
	return rec.State, rec.Version, nil
}

func (f *FileStore) Save(ctx context.Context, playerID string, state *game.GameState, version uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.read(playerID)
	if err != nil {
		return err
	}
	if rec.Version != version {
		return fmt.Errorf("%w: have %d, want %d", ErrConflict, version, rec.Version)
	}

	return f.write(playerID, &fileRecord{Version: version + 1, State: state})
}

func (f *FileStore) Create(ctx context.Context, playerID string, state *game.GameState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.read(playerID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, playerID)
	case !errors.Is(err, ErrNotFound):
		// A damaged record is never silently replaced
		return err
	}

	return f.write(playerID, &fileRecord{Version: 1, State: state})
}
