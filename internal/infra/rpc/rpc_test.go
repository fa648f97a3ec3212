package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rpcServer is a scriptable JSON-RPC endpoint. The probe method always
// succeeds so Connect can select the endpoint; behavior for other methods is
// driven by handle.
type rpcServer struct {
	*httptest.Server
	calls  atomic.Int64
	handle func(w http.ResponseWriter, method string, n int64)
}

func newRPCServer(t *testing.T, handle func(w http.ResponseWriter, method string, n int64)) *rpcServer {
	t.Helper()
	s := &rpcServer{handle: handle}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Method == "eth_blockNumber" {
			writeResult(w, `"0x100"`)
			return
		}
		s.handle(w, req.Method, s.calls.Add(1))
	}))
	t.Cleanup(s.Close)
	return s
}

func writeResult(w http.ResponseWriter, result string) {
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, result)
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		SwitchAfter: 2,
	}
}

func connect(t *testing.T, endpoints ...string) *Manager {
	t.Helper()
	mgr := NewManager(endpoints, 5*time.Second, 0, 0, testLogger())
	if err := mgr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return mgr
}

func TestClient_ClassifiesHTTPStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, KindRateLimited},
		{"server error", http.StatusBadGateway, KindConnection},
		{"client error", http.StatusNotFound, KindFatal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL, time.Second)
			_, err := client.Call(context.Background(), "eth_blockNumber", []any{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if kind := Classify(err); kind != tc.want {
				t.Errorf("expected kind %s, got %s", tc.want, kind)
			}
		})
	}
}

func TestClient_ClassifiesProtocolErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"request limit reached"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.Call(context.Background(), "eth_getBlockByNumber", []any{"0x1", true})
	if kind := Classify(err); kind != KindRateLimited {
		t.Errorf("expected rate_limited for code -32005, got %s", kind)
	}

	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Fatal("expected a classified *Error")
	}
	if rpcErr.Method != "eth_getBlockByNumber" {
		t.Errorf("error must carry the method, got %q", rpcErr.Method)
	}
}

func TestClient_ClassifiesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond)
	_, err := client.Call(context.Background(), "eth_blockNumber", []any{})
	if kind := Classify(err); kind != KindTimeout {
		t.Errorf("expected timeout, got %s (%v)", kind, err)
	}
}

func TestConnect_FallsThroughDeadEndpoints(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer dead.Close()
	live := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		writeResult(w, `"0x1"`)
	})

	mgr := connect(t, dead.URL, live.URL)

	result, err := mgr.Call(context.Background(), "eth_chainId", []any{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if string(result) != `"0x1"` {
		t.Errorf("unexpected result %s", result)
	}
}

func TestConnect_AllDead(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	mgr := NewManager([]string{dead.URL, dead.URL}, time.Second, 0, 0, testLogger())
	err := mgr.Connect(context.Background())
	if !errors.Is(err, ErrNoEndpointAvailable) {
		t.Fatalf("expected ErrNoEndpointAvailable, got %v", err)
	}
}

func TestSwitchEndpoint_StaleGenerationIsNoOp(t *testing.T) {
	a := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		writeResult(w, `"a"`)
	})
	b := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		writeResult(w, `"b"`)
	})

	mgr := connect(t, a.URL, b.URL)

	gen := mgr.Generation()
	if err := mgr.SwitchEndpoint(context.Background(), gen); err != nil {
		t.Fatalf("switch failed: %v", err)
	}
	if mgr.Generation() == gen {
		t.Fatal("generation must advance on a real switch")
	}

	// A second worker holding the stale generation must not switch again.
	after := mgr.Generation()
	if err := mgr.SwitchEndpoint(context.Background(), gen); err != nil {
		t.Fatalf("stale switch failed: %v", err)
	}
	if mgr.Generation() != after {
		t.Error("stale generation triggered a second switch")
	}
}

func TestExecutor_RetriesRateLimitThenSucceeds(t *testing.T) {
	srv := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeResult(w, `"0xabc"`)
	})

	mgr := connect(t, srv.URL)
	exec := NewExecutor(mgr, fastRetry(5), testLogger())

	result, err := exec.Do(context.Background(), "eth_getBalance", []any{"0x0", "latest"})
	if err != nil {
		t.Fatalf("expected success after backoff, got %v", err)
	}
	if string(result) != `"0xabc"` {
		t.Errorf("unexpected result %s", result)
	}
	if got := srv.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestExecutor_ConnectionErrorSwitchesImmediately(t *testing.T) {
	broken := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		w.WriteHeader(http.StatusBadGateway)
	})
	healthy := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		writeResult(w, `"ok"`)
	})

	mgr := connect(t, broken.URL, healthy.URL)
	exec := NewExecutor(mgr, fastRetry(5), testLogger())

	result, err := exec.Do(context.Background(), "eth_chainId", []any{})
	if err != nil {
		t.Fatalf("expected failover success, got %v", err)
	}
	if string(result) != `"ok"` {
		t.Errorf("unexpected result %s", result)
	}
	if got := broken.calls.Load(); got != 1 {
		t.Errorf("connection errors must switch on the first failure, got %d calls", got)
	}
}

func TestExecutor_RotatesAfterRepeatedRateLimits(t *testing.T) {
	limited := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	healthy := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		writeResult(w, `"ok"`)
	})

	mgr := connect(t, limited.URL, healthy.URL)
	exec := NewExecutor(mgr, fastRetry(5), testLogger())

	result, err := exec.Do(context.Background(), "eth_getBalance", []any{"0x0", "latest"})
	if err != nil {
		t.Fatalf("expected success after rotation, got %v", err)
	}
	if string(result) != `"ok"` {
		t.Errorf("unexpected result %s", result)
	}

	// Rate limits stay on the first endpoint until SwitchAfter consecutive
	// failures accumulate, then rotate.
	if got := limited.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts on the rate-limited endpoint, got %d", got)
	}
	if got := healthy.calls.Load(); got != 1 {
		t.Errorf("expected 1 attempt on the fallback endpoint, got %d", got)
	}
}

func TestExecutor_FatalErrorDoesNotRetry(t *testing.T) {
	srv := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`)
	})

	mgr := connect(t, srv.URL)
	exec := NewExecutor(mgr, fastRetry(5), testLogger())

	_, err := exec.Do(context.Background(), "eth_getBlockByNumber", []any{"zzz", true})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("fatal errors must not burn the retry budget")
	}
	if got := srv.calls.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestExecutor_ExhaustionWrapsLastError(t *testing.T) {
	srv := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	mgr := connect(t, srv.URL)
	exec := NewExecutor(mgr, fastRetry(3), testLogger())

	_, err := exec.Do(context.Background(), "eth_getBalance", []any{"0x0", "latest"})
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Fatalf("expected ErrMaxRetriesExceeded, got %v", err)
	}
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		t.Error("exhaustion must preserve the last classified error")
	}
	if got := srv.calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestExecutor_ContextCancelledDuringBackoff(t *testing.T) {
	srv := newRPCServer(t, func(w http.ResponseWriter, method string, n int64) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	mgr := connect(t, srv.URL)
	exec := NewExecutor(mgr, RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
		SwitchAfter: 2,
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := exec.Do(ctx, "eth_getBalance", []any{"0x0", "latest"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestClassify_UnwrappedErrorsAreFatal(t *testing.T) {
	if kind := Classify(errors.New("something odd")); kind != KindFatal {
		t.Errorf("unknown errors must be fatal, got %s", kind)
	}
}
