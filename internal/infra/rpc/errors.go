package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNoEndpointAvailable is returned when every configured endpoint
	// failed the liveness probe.
	ErrNoEndpointAvailable = errors.New("no rpc endpoint available")

	// ErrMaxRetriesExceeded is returned when an operation exhausted its
	// retry budget.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// ErrorKind classifies an RPC failure for retry decisions. Classification
// happens once, at the transport boundary, so retry logic never inspects
// error message text.
type ErrorKind int

const (
	// KindFatal errors are not retryable (bad request, unexpected shape,
	// JSON-RPC protocol errors).
	KindFatal ErrorKind = iota
	// KindRateLimited errors back off and retry on the same endpoint.
	KindRateLimited
	// KindTimeout errors back off and retry on the same endpoint.
	KindTimeout
	// KindConnection errors retry after switching to the next endpoint.
	KindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "fatal"
	}
}

// Retryable reports whether the kind allows another attempt.
func (k ErrorKind) Retryable() bool {
	return k != KindFatal
}

// Error is a classified RPC failure.
type Error struct {
	Kind     ErrorKind
	Method   string
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s (%s, %s): %v", e.Method, e.Kind, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Classify returns the kind of an error. Unwrapped transport errors (context
// deadlines, net timeouts) are mapped here; anything unclassified is fatal.
func Classify(err error) ErrorKind {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	return KindFatal
}
