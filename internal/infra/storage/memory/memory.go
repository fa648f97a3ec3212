// Package memory implements the storage contracts in memory, with the same
// merge semantics as the postgres implementation. Used by tests and local
// dry runs.
package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/bajpainaman/Avalytics/internal/core/domain"
	"github.com/bajpainaman/Avalytics/internal/infra/storage"
)

// Store holds all state behind one lock. Writes are staged per BatchTx and
// applied on Commit, mirroring the all-or-nothing behavior of a SQL
// transaction.
type Store struct {
	mu         sync.RWMutex
	txs        map[string]*domain.Transaction
	wallets    map[string]*domain.WalletProfile
	checkpoint uint64
	hasCkpt    bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		txs:     make(map[string]*domain.Transaction),
		wallets: make(map[string]*domain.WalletProfile),
	}
}

var _ storage.BatchStore = (*Store)(nil)
var _ storage.CheckpointRepository = (*Store)(nil)
var _ storage.WalletReader = (*Store)(nil)

// Begin opens a staged unit of work.
func (s *Store) Begin(ctx context.Context) (storage.BatchTx, error) {
	return &batchTx{store: s}, nil
}

// Get returns the checkpoint height.
func (s *Store) Get(ctx context.Context) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoint, s.hasCkpt, nil
}

// Save advances the checkpoint outside a batch.
func (s *Store) Save(ctx context.Context, height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCheckpoint(height)
	return nil
}

func (s *Store) applyCheckpoint(height uint64) {
	if !s.hasCkpt || height > s.checkpoint {
		s.checkpoint = height
		s.hasCkpt = true
	}
}

// GetByAddress returns a copy of a wallet profile, or nil when absent.
func (s *Store) GetByAddress(ctx context.Context, address string) (*domain.WalletProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.wallets[address]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.TotalVolumeWei = new(big.Int).Set(p.TotalVolumeWei)
	return &cp, nil
}

// TransactionCount returns the number of stored transactions.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

// HasTransaction reports whether a hash is stored.
func (s *Store) HasTransaction(hash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.txs[hash]
	return ok
}

// TransactionsByBlock returns stored transactions for one height.
func (s *Store) TransactionsByBlock(height uint64) []*domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Transaction
	for _, t := range s.txs {
		if t.BlockNumber == height {
			out = append(out, t)
		}
	}
	return out
}

// WalletCount returns the number of wallet profiles.
func (s *Store) WalletCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wallets)
}

type stagedMerge struct {
	deltas    map[string]*domain.WalletDelta
	threshold *big.Int
}

type batchTx struct {
	store      *Store
	newTxs     []*domain.Transaction
	merges     []stagedMerge
	checkpoint *uint64
	done       bool
}

func (b *batchTx) InsertTransactions(ctx context.Context, txs []*domain.Transaction) ([]*domain.Transaction, error) {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()

	staged := make(map[string]struct{}, len(b.newTxs))
	for _, t := range b.newTxs {
		staged[t.Hash] = struct{}{}
	}

	var inserted []*domain.Transaction
	for _, t := range txs {
		if _, ok := b.store.txs[t.Hash]; ok {
			continue
		}
		if _, ok := staged[t.Hash]; ok {
			continue
		}
		staged[t.Hash] = struct{}{}
		inserted = append(inserted, t)
	}
	b.newTxs = append(b.newTxs, inserted...)
	return inserted, nil
}

func (b *batchTx) MergeWalletDeltas(ctx context.Context, deltas map[string]*domain.WalletDelta, whaleThresholdWei *big.Int) error {
	b.merges = append(b.merges, stagedMerge{deltas: deltas, threshold: whaleThresholdWei})
	return nil
}

func (b *batchTx) SaveCheckpoint(ctx context.Context, height uint64) error {
	h := height
	b.checkpoint = &h
	return nil
}

func (b *batchTx) Commit() error {
	if b.done {
		return nil
	}
	b.done = true

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range b.newTxs {
		s.txs[t.Hash] = t
	}

	for _, m := range b.merges {
		for addr, d := range m.deltas {
			p, ok := s.wallets[addr]
			if !ok {
				p = &domain.WalletProfile{
					Address:        addr,
					FirstSeen:      d.FirstSeen,
					LastActive:     d.LastSeen,
					TotalVolumeWei: new(big.Int),
				}
				s.wallets[addr] = p
			}
			if d.FirstSeen.Before(p.FirstSeen) {
				p.FirstSeen = d.FirstSeen
			}
			if d.LastSeen.After(p.LastActive) {
				p.LastActive = d.LastSeen
			}
			p.TotalTxs += d.TxCount
			p.TotalVolumeWei.Add(p.TotalVolumeWei, d.VolumeWei)
			if m.threshold != nil && p.TotalVolumeWei.Cmp(m.threshold) >= 0 {
				p.IsWhale = true
			}
		}
	}

	if b.checkpoint != nil {
		s.applyCheckpoint(*b.checkpoint)
	}
	return nil
}

func (b *batchTx) Rollback() error {
	b.done = true
	return nil
}
