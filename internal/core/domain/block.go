package domain

import "time"

// BlockResult is one fetched block with its normalized transactions.
type BlockResult struct {
	Number       uint64
	Hash         string
	Timestamp    time.Time
	Transactions []*Transaction
}

// TxCount returns the number of transactions in the block.
func (b *BlockResult) TxCount() int {
	return len(b.Transactions)
}
