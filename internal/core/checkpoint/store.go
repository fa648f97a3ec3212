// Package checkpoint provides the redundant indexing watermark: a primary
// database record plus a secondary JSON file, so losing either one does not
// strand the indexer without a resume point.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bajpainaman/Avalytics/internal/infra/storage"
)

// Store reads and writes the checkpoint redundantly. On divergence the
// primary (database) value is authoritative; the file only serves reads when
// the primary record is missing or unreadable.
type Store struct {
	primary  storage.CheckpointRepository
	filePath string
	log      *slog.Logger
}

// NewStore creates a checkpoint store. An empty filePath disables the file
// mirror.
func NewStore(primary storage.CheckpointRepository, filePath string, log *slog.Logger) *Store {
	return &Store{primary: primary, filePath: filePath, log: log}
}

type fileCheckpoint struct {
	LastBlock uint64    `json:"last_block"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Get returns the last fully indexed height, or 0 when nothing was ever
// indexed.
func (s *Store) Get(ctx context.Context) (uint64, error) {
	height, ok, err := s.primary.Get(ctx)
	if err == nil && ok {
		return height, nil
	}
	if err != nil {
		s.log.Warn("primary checkpoint unreadable, falling back to file", "error", err)
	}

	fromFile, ferr := s.readFile()
	if ferr != nil {
		if err != nil {
			// Both stores failed; surface the primary error.
			return 0, fmt.Errorf("checkpoint unavailable: %w", err)
		}
		return 0, nil // never indexed
	}
	return fromFile, nil
}

// Save writes the checkpoint to both stores. The primary write inside a batch
// transaction normally precedes this; Save is for non-transactional callers.
func (s *Store) Save(ctx context.Context, height uint64) error {
	if err := s.primary.Save(ctx, height); err != nil {
		return err
	}
	s.SaveFile(height)
	return nil
}

// SaveFile mirrors the height into the secondary JSON file. Best-effort: the
// primary record already committed, so a file write failure is only logged.
func (s *Store) SaveFile(height uint64) {
	if s.filePath == "" {
		return
	}

	data, err := json.Marshal(fileCheckpoint{LastBlock: height, UpdatedAt: time.Now().UTC()})
	if err != nil {
		s.log.Warn("failed to encode checkpoint file", "error", err)
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		s.log.Warn("failed to create checkpoint dir", "error", err)
		return
	}

	// Atomic replace: a crash mid-write must not corrupt the fallback.
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Warn("failed to write checkpoint file", "error", err)
		return
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		s.log.Warn("failed to replace checkpoint file", "error", err)
	}
}

func (s *Store) readFile() (uint64, error) {
	if s.filePath == "" {
		return 0, os.ErrNotExist
	}
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return 0, err
	}
	var cp fileCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, fmt.Errorf("corrupt checkpoint file: %w", err)
	}
	return cp.LastBlock, nil
}
