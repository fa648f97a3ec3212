package domain

import (
	"math/big"
	"time"
)

// TxStatus is the execution status of a transaction.
type TxStatus int

const (
	TxStatusFailed  TxStatus = 0
	TxStatusSuccess TxStatus = 1
)

// Transaction is a normalized C-Chain transaction as observed in a block.
// Value and GasPrice are wei amounts; they routinely exceed 64-bit range,
// so they stay big.Int end to end and are persisted as NUMERIC.
type Transaction struct {
	Hash        string
	BlockNumber uint64
	From        string
	To          string // empty for contract creation
	Value       *big.Int
	GasPrice    *big.Int
	GasUsed     uint64
	Status      TxStatus
	Timestamp   time.Time // block time
	InputData   string    // truncated payload
}

// IsContractCreation reports whether the transaction has no recipient.
func (t *Transaction) IsContractCreation() bool {
	return t.To == ""
}
