package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/bajpainaman/Avalytics/internal/core/domain"
)

// WalletRepo serves wallet profile reads. Writes go through BatchTx only.
type WalletRepo struct {
	db *DB
}

// NewWalletRepo creates a wallet repository.
func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

type walletRow struct {
	Address        string    `db:"address"`
	FirstSeen      time.Time `db:"first_seen"`
	LastActive     time.Time `db:"last_active"`
	TotalTxs       int64     `db:"total_txs"`
	TotalVolumeWei string    `db:"total_volume_wei"`
	IsWhale        bool      `db:"is_whale"`
	IsBot          bool      `db:"is_bot"`
	IsDexUser      bool      `db:"is_dex_user"`
	IsNFTCollector bool      `db:"is_nft_collector"`
	LastUpdated    time.Time `db:"last_updated"`
}

func (w *walletRow) toDomain() (*domain.WalletProfile, error) {
	volume, ok := new(big.Int).SetString(w.TotalVolumeWei, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt volume %q for wallet %s", w.TotalVolumeWei, w.Address)
	}
	return &domain.WalletProfile{
		Address:        w.Address,
		FirstSeen:      w.FirstSeen,
		LastActive:     w.LastActive,
		TotalTxs:       w.TotalTxs,
		TotalVolumeWei: volume,
		IsWhale:        w.IsWhale,
		IsBot:          w.IsBot,
		IsDexUser:      w.IsDexUser,
		IsNFTCollector: w.IsNFTCollector,
		LastUpdated:    w.LastUpdated,
	}, nil
}

// GetByAddress retrieves a wallet profile, or nil when absent.
func (r *WalletRepo) GetByAddress(ctx context.Context, address string) (*domain.WalletProfile, error) {
	const query = `
		SELECT address, first_seen, last_active, total_txs, total_volume_wei::text AS total_volume_wei,
		       is_whale, is_bot, is_dex_user, is_nft_collector, last_updated
		FROM wallet_profiles
		WHERE address = $1
	`

	var row walletRow
	err := r.db.GetContext(ctx, &row, query, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wallet profile: %w", err)
	}
	return row.toDomain()
}
