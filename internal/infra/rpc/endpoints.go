package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bajpainaman/Avalytics/internal/indexing/metrics"
)

// Manager holds an ordered list of candidate endpoints and keeps one live
// client selected. Fetch workers share the manager read-only; endpoint
// switches are serialized and generation-stamped so concurrent workers that
// observed the same dead endpoint trigger at most one switch.
type Manager struct {
	endpoints []string
	timeout   time.Duration
	limiter   *rate.Limiter
	log       *slog.Logger

	mu     sync.RWMutex
	idx    int
	client *Client
	gen    uint64
}

// NewManager creates a manager over ordered endpoint URLs. rps of 0 disables
// client-side rate limiting.
func NewManager(endpoints []string, timeout time.Duration, rps float64, burst int, log *slog.Logger) *Manager {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Manager{
		endpoints: endpoints,
		timeout:   timeout,
		limiter:   limiter,
		log:       log,
	}
}

// Connect probes endpoints in order until one answers the liveness call and
// selects it. It fails with ErrNoEndpointAvailable when all candidates are
// exhausted.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectFromLocked(ctx, 0)
}

// connectFromLocked tries each endpoint starting at offset start, wrapping.
func (m *Manager) connectFromLocked(ctx context.Context, start int) error {
	for i := 0; i < len(m.endpoints); i++ {
		idx := (start + i) % len(m.endpoints)
		client := NewClient(m.endpoints[idx], m.timeout)
		if err := probe(ctx, client); err != nil {
			m.log.Warn("endpoint probe failed", "endpoint", m.endpoints[idx], "error", err)
			continue
		}
		m.idx = idx
		m.client = client
		m.gen++
		m.log.Info("connected to rpc endpoint", "endpoint", m.endpoints[idx])
		return nil
	}
	return fmt.Errorf("%w: tried %d endpoints", ErrNoEndpointAvailable, len(m.endpoints))
}

// probe issues the liveness call.
func probe(ctx context.Context, c *Client) error {
	_, err := c.Call(ctx, "eth_blockNumber", []any{})
	return err
}

// Generation returns the current selection generation. Callers capture it
// before a call and pass it to SwitchEndpoint so a switch already performed
// by another worker is not repeated.
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// SwitchEndpoint advances to the next candidate (wrapping) and reconnects.
// It is a no-op if the selection changed since seenGen was captured.
func (m *Manager) SwitchEndpoint(ctx context.Context, seenGen uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != seenGen {
		return nil // another worker already switched
	}
	m.log.Info("switching rpc endpoint", "from", m.endpoints[m.idx])
	metrics.EndpointSwitches.Inc()
	return m.connectFromLocked(ctx, m.idx+1)
}

// Call performs one JSON-RPC call on the currently selected endpoint.
func (m *Manager) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return nil, fmt.Errorf("%w: not connected", ErrNoEndpointAvailable)
	}

	start := time.Now()
	result, err := client.Call(ctx, method, params)
	metrics.RPCLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	metrics.RPCCallsTotal.WithLabelValues(method).Inc()
	if err != nil {
		metrics.RPCErrorsTotal.WithLabelValues(method, Classify(err).String()).Inc()
	}
	return result, err
}
