// Package indexer drives batches of block heights through fetch, aggregate,
// persist and checkpoint under a bounded worker pool.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bajpainaman/Avalytics/internal/core/checkpoint"
	"github.com/bajpainaman/Avalytics/internal/core/domain"
	"github.com/bajpainaman/Avalytics/internal/indexing/aggregate"
	"github.com/bajpainaman/Avalytics/internal/indexing/metrics"
	"github.com/bajpainaman/Avalytics/internal/infra/rpc"
	"github.com/bajpainaman/Avalytics/internal/infra/storage"
)

// BlockFetcher retrieves chain data. Implemented by the evm fetcher.
type BlockFetcher interface {
	LatestHeight(ctx context.Context) (uint64, error)
	FetchBlock(ctx context.Context, height uint64) (*domain.BlockResult, error)
}

// SkipRecorder receives heights that soft-failed, for later revisits.
// Best-effort: recording failures are logged, never propagated.
type SkipRecorder interface {
	Add(ctx context.Context, height uint64, reason string) error
}

// Config holds the orchestrator's tunables.
type Config struct {
	BatchSize         int
	Workers           int
	WhaleThresholdWei *big.Int
	ResumeLookback    uint64
}

// Indexer coordinates one run mode at a time. Fetches fan out to a bounded
// pool per batch; aggregation and persistence run on the coordinating
// goroutine after the batch barrier, so the store sees a single writer.
type Indexer struct {
	cfg     Config
	fetcher BlockFetcher
	store   storage.BatchStore
	ckpts   *checkpoint.Store
	skipped SkipRecorder // nil disables skip bookkeeping
	log     *slog.Logger
}

// New creates an indexer.
func New(cfg Config, fetcher BlockFetcher, store storage.BatchStore, ckpts *checkpoint.Store, skipped SkipRecorder, log *slog.Logger) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ResumeLookback == 0 {
		cfg.ResumeLookback = 10000
	}
	return &Indexer{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		ckpts:   ckpts,
		skipped: skipped,
		log:     log,
	}
}

// fetchFatal reports errors that must abort the run instead of soft-skipping
// one height.
func fetchFatal(err error) bool {
	return errors.Is(err, rpc.ErrMaxRetriesExceeded) ||
		errors.Is(err, rpc.ErrNoEndpointAvailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IndexRange indexes [start, end] inclusive in fixed-size batches, strictly
// ascending. The returned summary is populated even when err is non-nil, so
// callers can report how far the run got.
func (ix *Indexer) IndexRange(ctx context.Context, start, end uint64) (*Summary, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range [%d, %d]", start, end)
	}

	summary := &Summary{
		RunID:       uuid.NewString(),
		StartHeight: start,
		EndHeight:   end,
	}
	prog := newProgress(start, end)

	ix.log.Info("indexing range",
		"run_id", summary.RunID, "start", start, "end", end,
		"blocks", end-start+1, "batch_size", ix.cfg.BatchSize, "workers", ix.cfg.Workers)

	for batchStart := start; batchStart <= end; batchStart += uint64(ix.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = prog.elapsed()
			return summary, err
		}

		batchEnd := batchStart + uint64(ix.cfg.BatchSize) - 1
		if batchEnd > end {
			batchEnd = end
		}

		if err := ix.processBatch(ctx, batchStart, batchEnd, summary, prog); err != nil {
			summary.Elapsed = prog.elapsed()
			return summary, err
		}
	}

	summary.Elapsed = prog.elapsed()
	ix.log.Info("range complete",
		"run_id", summary.RunID,
		"blocks", summary.BlocksProcessed, "skipped", summary.BlocksSkipped,
		"txs", summary.Transactions, "wallets", summary.WalletsTouched,
		"elapsed", summary.Elapsed.Round(time.Second))
	return summary, nil
}

// processBatch fetches one batch concurrently, waits for the barrier, then
// aggregates, persists and checkpoints as a unit.
func (ix *Indexer) processBatch(ctx context.Context, batchStart, batchEnd uint64, summary *Summary, prog *progress) error {
	batchTimer := time.Now()
	size := int(batchEnd - batchStart + 1)
	blocks := make([]*domain.BlockResult, size)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Workers)
	for i := 0; i < size; i++ {
		i := i
		g.Go(func() error {
			height := batchStart + uint64(i)
			block, err := ix.fetcher.FetchBlock(gctx, height)
			if err != nil {
				if fetchFatal(err) {
					return err
				}
				ix.recordSkip(gctx, height, err)
				return nil
			}
			blocks[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("batch [%d, %d] fetch: %w", batchStart, batchEnd, err)
	}

	fetched := make([]*domain.BlockResult, 0, size)
	var batchTxs []*domain.Transaction
	for _, b := range blocks {
		if b == nil {
			summary.BlocksSkipped++
			continue
		}
		fetched = append(fetched, b)
		batchTxs = append(batchTxs, b.Transactions...)
	}

	newTxs, wallets, err := ix.persistBatch(ctx, batchTxs, batchEnd)
	if err != nil {
		return fmt.Errorf("batch [%d, %d] persist: %w", batchStart, batchEnd, err)
	}

	// Data is durable; mirror the checkpoint into the secondary file.
	ix.ckpts.SaveFile(batchEnd)
	summary.LastCheckpoint = batchEnd

	summary.BlocksProcessed += len(fetched)
	summary.Transactions += newTxs
	summary.WalletsTouched += wallets
	prog.advance(len(fetched))

	metrics.BlocksProcessed.Add(float64(len(fetched)))
	metrics.TransactionsIndexed.Add(float64(newTxs))
	metrics.WalletsMerged.Add(float64(wallets))
	metrics.IndexedHead.Set(float64(batchEnd))
	metrics.BatchDuration.Observe(time.Since(batchTimer).Seconds())

	ix.log.Info("batch indexed",
		"height", batchEnd,
		"progress", fmt.Sprintf("%.1f%%", prog.percent()),
		"txs", newTxs, "wallets", wallets,
		"blocks_per_sec", fmt.Sprintf("%.1f", prog.rate()),
		"eta", prog.eta())
	return nil
}

// persistBatch writes one batch atomically: transaction upserts, wallet
// merges derived from the newly inserted transactions, and the checkpoint
// row. Data and checkpoint commit together, so the checkpoint can lag the
// data after a crash but never lead it.
func (ix *Indexer) persistBatch(ctx context.Context, txs []*domain.Transaction, batchEnd uint64) (newTxs, wallets int, err error) {
	uow, err := ix.store.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()

	inserted, err := uow.InsertTransactions(ctx, txs)
	if err != nil {
		return 0, 0, err
	}

	deltas := aggregate.Transactions(inserted)
	if err = uow.MergeWalletDeltas(ctx, deltas, ix.cfg.WhaleThresholdWei); err != nil {
		return 0, 0, err
	}

	if err = uow.SaveCheckpoint(ctx, batchEnd); err != nil {
		return 0, 0, err
	}

	if err = uow.Commit(); err != nil {
		return 0, 0, err
	}
	return len(inserted), len(deltas), nil
}

func (ix *Indexer) recordSkip(ctx context.Context, height uint64, cause error) {
	ix.log.Warn("skipping block", "height", height, "error", cause)
	metrics.BlocksSkipped.Inc()
	if ix.skipped == nil {
		return
	}
	if err := ix.skipped.Add(ctx, height, cause.Error()); err != nil {
		ix.log.Warn("failed to record skipped height", "height", height, "error", err)
	}
}

// IndexLatest indexes the most recent n blocks up to the chain head.
func (ix *Indexer) IndexLatest(ctx context.Context, n uint64) (*Summary, error) {
	head, err := ix.fetcher.LatestHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve chain head: %w", err)
	}
	metrics.ChainHead.Set(float64(head))

	start := uint64(0)
	if head > n {
		start = head - n
	}
	return ix.IndexRange(ctx, start, head)
}

// Resume continues from the checkpoint up to target (or the chain head when
// target is nil). A zero checkpoint starts from a bounded lookback below the
// target instead of genesis; full historical backfill is not this mode's job.
func (ix *Indexer) Resume(ctx context.Context, target *uint64) (*Summary, error) {
	cp, err := ix.ckpts.Get(ctx)
	if err != nil {
		return nil, err
	}

	var tgt uint64
	if target != nil {
		tgt = *target
	} else {
		tgt, err = ix.fetcher.LatestHeight(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve chain head: %w", err)
		}
		metrics.ChainHead.Set(float64(tgt))
	}

	if cp >= tgt {
		ix.log.Info("already indexed", "checkpoint", cp, "target", tgt)
		return &Summary{StartHeight: cp, EndHeight: cp, LastCheckpoint: cp}, nil
	}

	start := cp + 1
	if cp == 0 {
		start = 0
		if tgt > ix.cfg.ResumeLookback {
			start = tgt - ix.cfg.ResumeLookback
		}
		ix.log.Info("no checkpoint, starting from lookback", "start", start, "target", tgt)
	}
	return ix.IndexRange(ctx, start, tgt)
}

// ContinuousSync polls for new blocks and indexes the gap between checkpoint
// and head each cycle. Endpoint exhaustion is logged and retried next cycle;
// persistence failures abort. Runs until ctx is cancelled.
func (ix *Indexer) ContinuousSync(ctx context.Context, pollInterval time.Duration) error {
	ix.log.Info("starting continuous sync", "poll_interval", pollInterval)

	for {
		if err := ix.syncOnce(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			ix.log.Info("continuous sync stopped")
			return nil
		case <-time.After(pollInterval):
		}
	}
}

func (ix *Indexer) syncOnce(ctx context.Context) error {
	cp, err := ix.ckpts.Get(ctx)
	if err != nil {
		return err
	}

	head, err := ix.fetcher.LatestHeight(ctx)
	if err != nil {
		if fetchFatal(err) && !errors.Is(err, context.Canceled) {
			ix.log.Warn("head lookup failed, retrying next cycle", "error", err)
			return nil
		}
		return err
	}
	metrics.ChainHead.Set(float64(head))

	if head <= cp {
		ix.log.Debug("up to date", "height", cp)
		return nil
	}

	summary, err := ix.IndexRange(ctx, cp+1, head)
	if err != nil {
		// RPC exhaustion is transient here: the checkpoint still marks the
		// last durable batch, so the next cycle picks up cleanly.
		if errors.Is(err, rpc.ErrMaxRetriesExceeded) || errors.Is(err, rpc.ErrNoEndpointAvailable) {
			ix.log.Warn("sync cycle aborted, will retry", "error", err, "checkpoint", summary.LastCheckpoint)
			return nil
		}
		return err
	}

	ix.log.Info("synced", "height", head, "txs", summary.Transactions, "wallets", summary.WalletsTouched)
	return nil
}
