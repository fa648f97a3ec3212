package postgres

import (
	"context"
	"fmt"
)

// IndexStats is a snapshot of the indexed tables for the stats command.
type IndexStats struct {
	Transactions int64
	Wallets      int64
	Whales       int64
	MinBlock     *uint64
	MaxBlock     *uint64
}

// Stats gathers table counts and the indexed block range.
func (db *DB) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	if err := db.GetContext(ctx, &stats.Transactions, `SELECT COUNT(*) FROM transactions`); err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}
	if err := db.GetContext(ctx, &stats.Wallets, `SELECT COUNT(*) FROM wallet_profiles`); err != nil {
		return nil, fmt.Errorf("count wallets: %w", err)
	}
	if err := db.GetContext(ctx, &stats.Whales, `SELECT COUNT(*) FROM wallet_profiles WHERE is_whale`); err != nil {
		return nil, fmt.Errorf("count whales: %w", err)
	}

	var blockRange struct {
		Min *uint64 `db:"min"`
		Max *uint64 `db:"max"`
	}
	if err := db.GetContext(ctx, &blockRange,
		`SELECT MIN(block_number) AS min, MAX(block_number) AS max FROM transactions`); err != nil {
		return nil, fmt.Errorf("block range: %w", err)
	}
	stats.MinBlock = blockRange.Min
	stats.MaxBlock = blockRange.Max

	return stats, nil
}
