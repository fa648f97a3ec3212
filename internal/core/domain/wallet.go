package domain

import (
	"math/big"
	"time"
)

// WalletDelta is the per-address increment derived from one batch of blocks.
// It is produced by the aggregator as a pure fold and has not yet been merged
// into persistent wallet state.
type WalletDelta struct {
	Address   string
	TxCount   int64
	VolumeWei *big.Int
	FirstSeen time.Time
	LastSeen  time.Time
}

// NewWalletDelta creates an empty delta for an address.
func NewWalletDelta(address string) *WalletDelta {
	return &WalletDelta{
		Address:   address,
		VolumeWei: new(big.Int),
	}
}

// Observe folds one transaction participation into the delta.
func (d *WalletDelta) Observe(valueWei *big.Int, ts time.Time) {
	d.TxCount++
	if valueWei != nil {
		d.VolumeWei.Add(d.VolumeWei, valueWei)
	}
	if d.FirstSeen.IsZero() || ts.Before(d.FirstSeen) {
		d.FirstSeen = ts
	}
	if ts.After(d.LastSeen) {
		d.LastSeen = ts
	}
}

// WalletProfile is the persistent, accumulating view of an address.
// TotalTxs and TotalVolumeWei are strictly additive across merges;
// FirstSeen/LastActive are min/max; IsWhale is monotonic (never cleared).
// The bot/DEX/NFT flags are written by the downstream profiler, not here.
type WalletProfile struct {
	Address        string
	FirstSeen      time.Time
	LastActive     time.Time
	TotalTxs       int64
	TotalVolumeWei *big.Int
	IsWhale        bool
	IsBot          bool
	IsDexUser      bool
	IsNFTCollector bool
	LastUpdated    time.Time
}
