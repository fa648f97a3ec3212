// Package storage defines the persistence contracts consumed by the
// orchestrator. Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"
	"math/big"

	"github.com/bajpainaman/Avalytics/internal/core/domain"
)

// BatchStore opens one atomic unit of work per batch. All writes for a batch
// (transactions, wallet merges, checkpoint row) commit or roll back together,
// so a crash mid-merge can never leave partial accumulation or a checkpoint
// ahead of the data.
type BatchStore interface {
	Begin(ctx context.Context) (BatchTx, error)
}

// BatchTx is the per-batch unit of work. The orchestrator is the only writer;
// calls happen after the batch's fetch barrier, never concurrently.
type BatchTx interface {
	// InsertTransactions upserts by hash and returns only the transactions
	// that were actually new. Wallet deltas are derived from the returned
	// subset, which makes re-indexing an overlapping range a no-op for
	// wallet aggregates as well as for transaction rows.
	InsertTransactions(ctx context.Context, txs []*domain.Transaction) ([]*domain.Transaction, error)

	// MergeWalletDeltas accumulates deltas into wallet profiles:
	// first_seen=min, last_active=max, counts and volume additive, whale
	// flag set when accumulated volume crosses the threshold and never
	// cleared afterwards.
	MergeWalletDeltas(ctx context.Context, deltas map[string]*domain.WalletDelta, whaleThresholdWei *big.Int) error

	// SaveCheckpoint records the batch's last height. Advance-only.
	SaveCheckpoint(ctx context.Context, height uint64) error

	Commit() error
	Rollback() error
}

// CheckpointRepository reads and writes the primary checkpoint record.
type CheckpointRepository interface {
	// Get returns the last indexed height; ok is false when no checkpoint
	// has ever been written.
	Get(ctx context.Context) (height uint64, ok bool, err error)

	// Save upserts the checkpoint. Values lower than the stored height are
	// ignored so the watermark only advances.
	Save(ctx context.Context, height uint64) error
}

// WalletReader serves profile lookups for the stats surface and tests.
type WalletReader interface {
	GetByAddress(ctx context.Context, address string) (*domain.WalletProfile, error)
}
