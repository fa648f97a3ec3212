package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig defines retry behavior for the executor.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// SwitchAfter is the number of consecutive retryable failures on the
	// same operation before the executor proactively rotates endpoints
	// instead of hammering a degraded one.
	SwitchAfter int
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    60 * time.Second,
	SwitchAfter: 2,
}

// Executor wraps every RPC call with classified retry, exponential backoff,
// and endpoint failover. All RPC traffic in the indexer goes through Do;
// no component calls an endpoint directly.
type Executor struct {
	mgr *Manager
	cfg RetryConfig
	log *slog.Logger
}

// NewExecutor creates an executor over the endpoint manager.
func NewExecutor(mgr *Manager, cfg RetryConfig, log *slog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if cfg.SwitchAfter <= 0 {
		cfg.SwitchAfter = DefaultRetryConfig.SwitchAfter
	}
	return &Executor{mgr: mgr, cfg: cfg, log: log}
}

// Do invokes the method with retry. Failure handling by kind:
//   - rate-limited / timeout: exponential backoff on the same endpoint,
//     switching endpoints once SwitchAfter consecutive failures accumulate
//   - connection: immediate endpoint switch, then backoff
//   - fatal: propagated immediately, no retry
//
// Exhausting the attempt budget yields ErrMaxRetriesExceeded.
func (e *Executor) Do(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	delay := e.cfg.BaseDelay
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		gen := e.mgr.Generation()
		result, err := e.mgr.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err

		kind := Classify(err)
		if !kind.Retryable() {
			return nil, err
		}

		switch kind {
		case KindConnection:
			if serr := e.mgr.SwitchEndpoint(ctx, gen); serr != nil {
				return nil, serr
			}
		case KindRateLimited, KindTimeout:
			// attempt is zero-based: by attempt==SwitchAfter the operation
			// has already failed SwitchAfter times on this endpoint.
			if attempt >= e.cfg.SwitchAfter {
				if serr := e.mgr.SwitchEndpoint(ctx, gen); serr != nil {
					return nil, serr
				}
			}
		}

		if attempt == e.cfg.MaxAttempts-1 {
			break
		}

		e.log.Debug("retrying rpc call",
			"method", method, "kind", kind.String(), "attempt", attempt+1, "delay", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, e.cfg.MaxDelay)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, e.cfg.MaxAttempts, lastErr)
}
