// Package metrics exposes Prometheus collectors for the indexer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BlocksProcessed tracks total blocks fully indexed.
	BlocksProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avalytics_blocks_processed_total",
			Help: "Total number of blocks fully indexed",
		},
	)

	// BlocksSkipped tracks heights skipped after a soft fetch failure.
	BlocksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avalytics_blocks_skipped_total",
			Help: "Total number of block heights skipped after fetch failure",
		},
	)

	// TransactionsIndexed tracks transactions upserted.
	TransactionsIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avalytics_transactions_indexed_total",
			Help: "Total number of transactions written",
		},
	)

	// WalletsMerged tracks wallet delta merges applied.
	WalletsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avalytics_wallets_merged_total",
			Help: "Total number of wallet profile merges applied",
		},
	)

	// RPCCallsTotal tracks RPC calls by method.
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avalytics_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"method"},
	)

	// RPCErrorsTotal tracks RPC failures by method and classified kind.
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avalytics_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"method", "kind"},
	)

	// RPCLatency tracks RPC call latency.
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avalytics_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// EndpointSwitches tracks endpoint failovers.
	EndpointSwitches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avalytics_endpoint_switches_total",
			Help: "Total number of RPC endpoint switches",
		},
	)

	// ChainHead tracks the latest chain height observed.
	ChainHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avalytics_chain_head",
			Help: "Latest chain height observed via RPC",
		},
	)

	// IndexedHead tracks the checkpointed height.
	IndexedHead = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avalytics_indexed_head",
			Help: "Highest fully indexed block height",
		},
	)

	// BatchDuration tracks wall time per batch.
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "avalytics_batch_duration_seconds",
			Help:    "Time to fetch, aggregate and persist one batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
