package sol

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoEndpoints is returned when the rotator was built with an empty
// endpoint list; no attempt is made in that case.
var ErrNoEndpoints = errors.New("no rpc endpoints configured")

const failoverDelay = 500 * time.Millisecond

// Rotator maintains an ordered pool of node endpoints and a cursor that
// advances on failure. Attempts are strictly sequential; concurrent
// WithFailover calls may interleave rotations, which is accepted:
// endpoint selection is best-effort, not linearizable.
type Rotator struct {
	clients []*Client

	mu    sync.Mutex
	index int

	retryable func(error) bool
	delay     time.Duration
	logger    *zap.Logger
}

// RotatorOption customizes rotator behavior.
type RotatorOption func(*Rotator)

// WithRetryable installs a predicate deciding whether an operation error
// is endpoint-level and worth retrying on the next endpoint. The default
// treats every error as retryable, so a malformed request will exhaust
// the pool before surfacing; callers that can tell validation errors
// apart can stop the loop early.
func WithRetryable(pred func(error) bool) RotatorOption {
	return func(r *Rotator) {
		r.retryable = pred
	}
}

// NewRotator builds one client per endpoint up front. The pool is
// immutable afterwards; only the cursor moves.
func NewRotator(endpoints []string, reqLimitPerSecond int, logger *zap.Logger, opts ...RotatorOption) *Rotator {
	clients := make([]*Client, 0, len(endpoints))
	for _, endpoint := range endpoints {
		clients = append(clients, NewClient(endpoint, reqLimitPerSecond))
	}

	r := &Rotator{
		clients:   clients,
		retryable: func(error) bool { return true },
		delay:     failoverDelay,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Size returns the number of endpoints in the pool.
func (r *Rotator) Size() int {
	return len(r.clients)
}

// Current returns the client the cursor points at, or nil for an empty pool.
func (r *Rotator) Current() *Client {
	if len(r.clients) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[r.index]
}

// Advance moves the cursor to the next endpoint and returns its client.
func (r *Rotator) Advance() *Client {
	if len(r.clients) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = (r.index + 1) % len(r.clients)
	return r.clients[r.index]
}

// WithFailover runs op against the current endpoint, rotating to the
// next one on failure. Each endpoint is tried at most once per call,
// with a fixed 500ms pause between attempts and none after the last.
// The cursor stays on whichever endpoint succeeded, so subsequent calls
// prefer a known-healthy node.
func (r *Rotator) WithFailover(ctx context.Context, op func(ctx context.Context, client *Client) error) error {
	n := len(r.clients)
	if n == 0 {
		return ErrNoEndpoints
	}

	var lastErr error
	for attempt := 0; attempt < n; attempt++ {
		client := r.Current()

		err := op(ctx, client)
		if err == nil {
			return nil
		}
		lastErr = err

		r.logger.Warn("rpc call failed, rotating endpoint",
			zap.String("endpoint", client.Endpoint()),
			zap.Int("attempt", attempt+1),
			zap.Int("pool", n),
			zap.Error(err),
		)

		// Rotate even on the last attempt so the next call starts fresh.
		r.Advance()

		if !r.retryable(err) {
			return err
		}
		if attempt == n-1 {
			break
		}

		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if lastErr == nil {
		// Unreachable given the loop above; kept as a guard.
		return errors.New("all rpc endpoints failed")
	}
	return lastErr
}
