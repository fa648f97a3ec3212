package evm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

// fakeCaller returns canned results keyed by method.
type fakeCaller struct {
	results map[string]string
	err     error
	lastDo  struct {
		method string
		params []any
	}
}

func (f *fakeCaller) Do(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	f.lastDo.method = method
	f.lastDo.params = params
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.results[method]), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sampleBlock = `{
	"number": "0x3039",
	"hash": "0xBLOCKHASH",
	"timestamp": "0x65e8f380",
	"transactions": [
		{
			"hash": "0xABCDEF",
			"from": "0xSenderAddr",
			"to": "0xReceiverAddr",
			"value": "0xde0b6b3a7640000",
			"gasPrice": "0x5d21dba00",
			"gas": "0x5208",
			"input": "0x"
		},
		{
			"hash": "0xdeploy",
			"from": "0xdeployer",
			"to": null,
			"value": "0x0",
			"gas": "0x30d40",
			"input": "0x60806040523480156100115760006080604052348015610011576000608060405234801561001157600060806040523480156100115760006080"
		}
	]
}`

func TestFetchBlock_Normalizes(t *testing.T) {
	caller := &fakeCaller{results: map[string]string{"eth_getBlockByNumber": sampleBlock}}
	f := NewFetcher(caller, 100, testLogger())

	block, err := f.FetchBlock(context.Background(), 12345)
	if err != nil {
		t.Fatalf("FetchBlock failed: %v", err)
	}

	if caller.lastDo.method != "eth_getBlockByNumber" {
		t.Errorf("unexpected method %q", caller.lastDo.method)
	}
	if caller.lastDo.params[0] != "0x3039" {
		t.Errorf("height must be hex-encoded, got %v", caller.lastDo.params[0])
	}
	if caller.lastDo.params[1] != true {
		t.Error("full transaction bodies must be requested")
	}

	if block.Number != 12345 {
		t.Errorf("expected height 12345, got %d", block.Number)
	}
	wantTime := time.Unix(0x65e8f380, 0).UTC()
	if !block.Timestamp.Equal(wantTime) {
		t.Errorf("expected timestamp %s, got %s", wantTime, block.Timestamp)
	}
	if len(block.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(block.Transactions))
	}

	tx := block.Transactions[0]
	if tx.Hash != "0xabcdef" {
		t.Errorf("hash must be lower-cased, got %q", tx.Hash)
	}
	if tx.From != "0xsenderaddr" || tx.To != "0xreceiveraddr" {
		t.Errorf("addresses must be lower-cased, got %q -> %q", tx.From, tx.To)
	}
	if tx.Value.String() != "1000000000000000000" {
		t.Errorf("expected 1 AVAX in wei, got %s", tx.Value)
	}
	if tx.GasUsed != 21000 {
		t.Errorf("expected gas 21000, got %d", tx.GasUsed)
	}
	if !tx.Timestamp.Equal(wantTime) {
		t.Errorf("transactions must carry the block time, got %s", tx.Timestamp)
	}

	deploy := block.Transactions[1]
	if !deploy.IsContractCreation() {
		t.Error("null recipient must mark contract creation")
	}
	if deploy.GasPrice.Sign() != 0 {
		t.Errorf("missing gasPrice must default to zero, got %s", deploy.GasPrice)
	}
	if len(deploy.InputData) != 100 {
		t.Errorf("input must be truncated to 100 bytes, got %d", len(deploy.InputData))
	}
}

func TestFetchBlock_MissingBlock(t *testing.T) {
	caller := &fakeCaller{results: map[string]string{"eth_getBlockByNumber": "null"}}
	f := NewFetcher(caller, 100, testLogger())

	if _, err := f.FetchBlock(context.Background(), 99); err == nil {
		t.Fatal("expected an error for a missing block")
	}
}

func TestFetchBlock_BadTransactionPoisonsBlock(t *testing.T) {
	bad := `{
		"number": "0x1",
		"hash": "0xh",
		"timestamp": "0x65e8f380",
		"transactions": [
			{"hash": "0xok", "from": "0xa", "to": "0xb", "value": "0x1", "gasPrice": "0x1", "gas": "0x5208", "input": "0x"},
			{"hash": "0xbad", "from": "0xa", "to": "0xb", "value": "not-hex", "gasPrice": "0x1", "gas": "0x5208", "input": "0x"}
		]
	}`
	caller := &fakeCaller{results: map[string]string{"eth_getBlockByNumber": bad}}
	f := NewFetcher(caller, 100, testLogger())

	if _, err := f.FetchBlock(context.Background(), 1); err == nil {
		t.Fatal("one undecodable transaction must fail the whole height")
	}
}

func TestFetchBlock_PropagatesCallerError(t *testing.T) {
	want := errors.New("endpoint down")
	caller := &fakeCaller{err: want}
	f := NewFetcher(caller, 100, testLogger())

	if _, err := f.FetchBlock(context.Background(), 1); !errors.Is(err, want) {
		t.Fatalf("expected the caller error, got %v", err)
	}
}

func TestLatestHeight(t *testing.T) {
	caller := &fakeCaller{results: map[string]string{"eth_blockNumber": `"0x3b9aca00"`}}
	f := NewFetcher(caller, 100, testLogger())

	h, err := f.LatestHeight(context.Background())
	if err != nil {
		t.Fatalf("LatestHeight failed: %v", err)
	}
	if h != 1_000_000_000 {
		t.Errorf("expected height 1000000000, got %d", h)
	}
}

func TestParseHex(t *testing.T) {
	if _, err := parseHexUint64("0x"); err == nil {
		t.Error("empty hex must fail")
	}
	if v, err := parseHexUint64("0x2a"); err != nil || v != 42 {
		t.Errorf("expected 42, got %d (%v)", v, err)
	}
	if v, err := parseHexBig("0xde0b6b3a7640000"); err != nil || v.String() != "1000000000000000000" {
		t.Errorf("expected 1e18, got %s (%v)", v, err)
	}
	if _, err := parseHexBig("not-hex"); err == nil {
		t.Error("garbage must fail")
	}
}
