// Package evm fetches C-Chain blocks over JSON-RPC and normalizes their
// transactions into flat records.
package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/bajpainaman/Avalytics/internal/core/domain"
)

// Caller executes one RPC method with retry and failover.
type Caller interface {
	Do(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// Fetcher retrieves blocks with full transaction bodies in a single request
// per height. Receipt lookups are deliberately skipped: wallet aggregation
// needs value and participant addresses, not gas-used precision.
type Fetcher struct {
	caller        Caller
	maxInputBytes int
	log           *slog.Logger
}

// NewFetcher creates a block fetcher. maxInputBytes bounds how much of each
// transaction's input payload is stored.
func NewFetcher(caller Caller, maxInputBytes int, log *slog.Logger) *Fetcher {
	if maxInputBytes <= 0 {
		maxInputBytes = 100
	}
	return &Fetcher{caller: caller, maxInputBytes: maxInputBytes, log: log}
}

type rpcBlock struct {
	Number       string           `json:"number"`
	Hash         string           `json:"hash"`
	Timestamp    string           `json:"timestamp"`
	Transactions []rpcTransaction `json:"transactions"`
}

type rpcTransaction struct {
	Hash     string  `json:"hash"`
	From     string  `json:"from"`
	To       *string `json:"to"`
	Value    string  `json:"value"`
	GasPrice string  `json:"gasPrice"`
	Gas      string  `json:"gas"`
	Input    string  `json:"input"`
}

// LatestHeight returns the current chain head.
func (f *Fetcher) LatestHeight(ctx context.Context) (uint64, error) {
	raw, err := f.caller.Do(ctx, "eth_blockNumber", []any{})
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, fmt.Errorf("decode block number: %w", err)
	}
	return parseHexUint64(hex)
}

// FetchBlock retrieves the block at height with full transaction bodies and
// normalizes each transaction. Addresses are lower-cased for consistent merge
// keys and oversized input payloads are truncated.
func (f *Fetcher) FetchBlock(ctx context.Context, height uint64) (*domain.BlockResult, error) {
	raw, err := f.caller.Do(ctx, "eth_getBlockByNumber", []any{fmt.Sprintf("0x%x", height), true})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("block %d not found", height)
	}

	var block rpcBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, fmt.Errorf("decode block %d: %w", height, err)
	}

	return f.normalize(height, &block)
}

func (f *Fetcher) normalize(height uint64, block *rpcBlock) (*domain.BlockResult, error) {
	ts, err := parseHexUint64(block.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("block %d timestamp: %w", height, err)
	}
	blockTime := time.Unix(int64(ts), 0).UTC()

	result := &domain.BlockResult{
		Number:    height,
		Hash:      block.Hash,
		Timestamp: blockTime,
	}

	for i, tx := range block.Transactions {
		rec, err := f.normalizeTx(&tx, height, blockTime)
		if err != nil {
			// A single undecodable transaction poisons the whole height:
			// partial blocks would silently understate wallet aggregates.
			return nil, fmt.Errorf("block %d tx %d: %w", height, i, err)
		}
		result.Transactions = append(result.Transactions, rec)
	}

	return result, nil
}

func (f *Fetcher) normalizeTx(tx *rpcTransaction, height uint64, blockTime time.Time) (*domain.Transaction, error) {
	value, err := parseHexBig(tx.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	gasPrice, err := parseHexBig(tx.GasPrice)
	if err != nil {
		// Dynamic-fee transactions omit gasPrice; treat as zero.
		gasPrice = new(big.Int)
	}
	gas, err := parseHexUint64(tx.Gas)
	if err != nil {
		gas = 21000
	}

	to := ""
	if tx.To != nil {
		to = strings.ToLower(*tx.To)
	}

	input := tx.Input
	if len(input) > f.maxInputBytes {
		input = input[:f.maxInputBytes]
	}

	return &domain.Transaction{
		Hash:        strings.ToLower(tx.Hash),
		BlockNumber: height,
		From:        strings.ToLower(tx.From),
		To:          to,
		Value:       value,
		GasPrice:    gasPrice,
		GasUsed:     gas,
		Status:      domain.TxStatusSuccess,
		Timestamp:   blockTime,
		InputData:   input,
	}, nil
}
