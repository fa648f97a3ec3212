package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/bajpainaman/Avalytics/internal/core/domain"
	"github.com/bajpainaman/Avalytics/internal/infra/storage"
)

// BatchTx bundles one batch's writes (transactions, wallet merges, checkpoint)
// into a single database transaction so they commit or fail as a unit.
type BatchTx struct {
	tx *sqlx.Tx
}

var _ storage.BatchTx = (*BatchTx)(nil)

// Begin opens a unit of work for one batch.
func (db *DB) Begin(ctx context.Context) (storage.BatchTx, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &BatchTx{tx: tx}, nil
}

const insertTxSQL = `
	INSERT INTO transactions (
		tx_hash, block_number, from_address, to_address, value,
		gas_price, gas_used, status, block_time, input_data
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (tx_hash) DO NOTHING
	RETURNING tx_hash
`

// InsertTransactions upserts transactions by hash. Already-present hashes are
// left untouched (rows are immutable once written) and excluded from the
// returned slice, so callers can derive wallet deltas from genuinely new
// observations only.
func (u *BatchTx) InsertTransactions(ctx context.Context, txs []*domain.Transaction) ([]*domain.Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	stmt, err := u.tx.PreparexContext(ctx, insertTxSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]*domain.Transaction, 0, len(txs))
	for _, t := range txs {
		var to sql.NullString
		if t.To != "" {
			to = sql.NullString{String: t.To, Valid: true}
		}

		var hash string
		err := stmt.QueryRowxContext(ctx,
			t.Hash, t.BlockNumber, t.From, to,
			numericString(t.Value), numericString(t.GasPrice),
			t.GasUsed, int(t.Status), t.Timestamp, t.InputData,
		).Scan(&hash)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			continue // conflict: already indexed
		case err != nil:
			return nil, fmt.Errorf("insert transaction %s: %w", t.Hash, err)
		}
		inserted = append(inserted, t)
	}

	return inserted, nil
}

const mergeWalletSQL = `
	INSERT INTO wallet_profiles (
		address, first_seen, last_active, total_txs, total_volume_wei, is_whale, last_updated
	) VALUES ($1, $2, $3, $4, $5, $5::numeric >= $6::numeric, NOW())
	ON CONFLICT (address) DO UPDATE SET
		first_seen       = LEAST(wallet_profiles.first_seen, EXCLUDED.first_seen),
		last_active      = GREATEST(wallet_profiles.last_active, EXCLUDED.last_active),
		total_txs        = wallet_profiles.total_txs + EXCLUDED.total_txs,
		total_volume_wei = wallet_profiles.total_volume_wei + EXCLUDED.total_volume_wei,
		is_whale         = wallet_profiles.is_whale
			OR (wallet_profiles.total_volume_wei + EXCLUDED.total_volume_wei >= $6::numeric),
		last_updated     = NOW()
`

// MergeWalletDeltas accumulates batch deltas into wallet profiles. The upsert
// is atomic per address; first_seen/last_active use min/max, counts and volume
// are additive, and the whale flag is monotonic.
func (u *BatchTx) MergeWalletDeltas(ctx context.Context, deltas map[string]*domain.WalletDelta, whaleThresholdWei *big.Int) error {
	if len(deltas) == 0 {
		return nil
	}

	stmt, err := u.tx.PreparexContext(ctx, mergeWalletSQL)
	if err != nil {
		return fmt.Errorf("prepare merge: %w", err)
	}
	defer stmt.Close()

	threshold := numericString(whaleThresholdWei)
	for _, d := range deltas {
		if _, err := stmt.ExecContext(ctx,
			d.Address, d.FirstSeen, d.LastSeen, d.TxCount,
			numericString(d.VolumeWei), threshold,
		); err != nil {
			return fmt.Errorf("merge wallet %s: %w", d.Address, err)
		}
	}

	return nil
}

const saveCheckpointSQL = `
	INSERT INTO indexer_state (key, value, updated_at)
	VALUES ('last_block', $1, NOW())
	ON CONFLICT (key) DO UPDATE SET
		value = EXCLUDED.value,
		updated_at = NOW()
	WHERE indexer_state.value::bigint < EXCLUDED.value::bigint
`

// SaveCheckpoint records the batch's last height in the same transaction as
// its data. The WHERE clause keeps the watermark advance-only.
func (u *BatchTx) SaveCheckpoint(ctx context.Context, height uint64) error {
	if _, err := u.tx.ExecContext(ctx, saveCheckpointSQL, strconv.FormatUint(height, 10)); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Commit commits the unit of work.
func (u *BatchTx) Commit() error {
	return u.tx.Commit()
}

// Rollback aborts the unit of work. Safe after Commit.
func (u *BatchTx) Rollback() error {
	err := u.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func numericString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
