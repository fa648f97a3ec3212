// Package aggregate derives per-address wallet deltas from transactions.
// The fold is pure: no I/O, no shared state, independently testable.
package aggregate

import (
	"github.com/bajpainaman/Avalytics/internal/core/domain"
)

// Transactions folds a flat transaction list into one delta per address
// touched. Both sender and recipient (when present) are credited with the
// transaction count and value.
func Transactions(txs []*domain.Transaction) map[string]*domain.WalletDelta {
	deltas := make(map[string]*domain.WalletDelta)

	touch := func(addr string, tx *domain.Transaction) {
		d, ok := deltas[addr]
		if !ok {
			d = domain.NewWalletDelta(addr)
			deltas[addr] = d
		}
		d.Observe(tx.Value, tx.Timestamp)
	}

	for _, tx := range txs {
		touch(tx.From, tx)
		if !tx.IsContractCreation() {
			touch(tx.To, tx)
		}
	}

	return deltas
}
