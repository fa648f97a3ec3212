package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bajpainaman/Avalytics/internal/core/checkpoint"
	"github.com/bajpainaman/Avalytics/internal/core/config"
	"github.com/bajpainaman/Avalytics/internal/indexing/indexer"
	"github.com/bajpainaman/Avalytics/internal/infra/chain/evm"
	redisinfra "github.com/bajpainaman/Avalytics/internal/infra/redis"
	"github.com/bajpainaman/Avalytics/internal/infra/rpc"
	"github.com/bajpainaman/Avalytics/internal/infra/storage/postgres"
)

// app bundles the wired collaborators for one command invocation.
type app struct {
	cfg     *config.AppConfig
	log     *slog.Logger
	db      *postgres.DB
	ckpts   *checkpoint.Store
	indexer *indexer.Indexer

	redis *redisinfra.Client
}

// openDB connects to PostgreSQL and applies migrations.
func openDB(ctx context.Context, cfg *config.AppConfig) (*postgres.DB, error) {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// buildApp wires everything an indexing command needs, including a live RPC
// connection. Redis is optional: when unconfigured or unreachable the indexer
// runs without skip bookkeeping.
func buildApp(ctx context.Context, cfg *config.AppConfig, log *slog.Logger) (*app, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mgr := rpc.NewManager(cfg.RPC.Endpoints, cfg.RPC.Timeout, cfg.RPC.RateLimitRPS, cfg.RPC.RateBurst, log)
	if err := mgr.Connect(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rpc connect: %w", err)
	}

	exec := rpc.NewExecutor(mgr, rpc.RetryConfig{
		MaxAttempts: cfg.RPC.MaxRetries,
		BaseDelay:   cfg.RPC.BaseDelay,
		MaxDelay:    cfg.RPC.MaxDelay,
		SwitchAfter: cfg.RPC.SwitchAfter,
	}, log)
	fetcher := evm.NewFetcher(exec, cfg.Indexer.MaxInputBytes, log)

	ckpts := checkpoint.NewStore(postgres.NewCheckpointRepo(db), cfg.Indexer.CheckpointFile, log)

	a := &app{cfg: cfg, log: log, db: db, ckpts: ckpts}

	var skipped indexer.SkipRecorder
	if cfg.Redis.Addr != "" {
		rc, err := redisinfra.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, skipped-height bookkeeping disabled", "error", err)
		} else {
			a.redis = rc
			skipped = redisinfra.NewSkippedQueue(rc)
		}
	}

	a.indexer = indexer.New(indexer.Config{
		BatchSize:         cfg.Indexer.BatchSize,
		Workers:           cfg.Indexer.Workers,
		WhaleThresholdWei: cfg.Indexer.WhaleThresholdWei(),
		ResumeLookback:    cfg.Indexer.ResumeLookback,
	}, fetcher, db, ckpts, skipped, log)

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
