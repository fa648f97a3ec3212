package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// CheckpointRepo is the primary (authoritative) checkpoint record.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// Get returns the last indexed height; ok is false when no checkpoint exists.
func (r *CheckpointRepo) Get(ctx context.Context) (uint64, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM indexer_state WHERE key = 'last_block'`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get checkpoint: %w", err)
	}

	height, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt checkpoint value %q: %w", value, err)
	}
	return height, true, nil
}

// Save upserts the checkpoint outside a batch transaction, advance-only.
func (r *CheckpointRepo) Save(ctx context.Context, height uint64) error {
	if _, err := r.db.ExecContext(ctx, saveCheckpointSQL, strconv.FormatUint(height, 10)); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
