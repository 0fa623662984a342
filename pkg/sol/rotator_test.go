package sol

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWithFailoverEmptyPool(t *testing.T) {
	r := NewRotator(nil, 20, zap.NewNop())

	attempts := 0
	err := r.WithFailover(context.Background(), func(ctx context.Context, c *Client) error {
		attempts++
		return nil
	})

	require.ErrorIs(t, err, ErrNoEndpoints)
	require.Zero(t, attempts)
}

func TestWithFailoverExhaustsPool(t *testing.T) {
	endpoints := []string{"http://x.example", "http://y.example", "http://z.example"}
	r := NewRotator(endpoints, 20, zap.NewNop())
	r.delay = time.Millisecond

	boom := errors.New("node down")
	var attempted []string
	err := r.WithFailover(context.Background(), func(ctx context.Context, c *Client) error {
		attempted = append(attempted, c.Endpoint())
		return boom
	})

	require.ErrorIs(t, err, boom)
	require.Equal(t, endpoints, attempted)
}

func TestWithFailoverCursorStaysOnWinner(t *testing.T) {
	endpoints := []string{"http://x.example", "http://y.example", "http://z.example"}
	r := NewRotator(endpoints, 20, zap.NewNop())
	r.delay = time.Millisecond

	attempts := 0
	err := r.WithFailover(context.Background(), func(ctx context.Context, c *Client) error {
		attempts++
		if c.Endpoint() != "http://z.example" {
			return errors.New("unreachable")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	// No reset-to-first: the next call starts on the endpoint that worked.
	require.Equal(t, "http://z.example", r.Current().Endpoint())
}

func TestWithFailoverFixedBackoff(t *testing.T) {
	endpoints := []string{"http://x.example", "http://y.example", "http://z.example"}
	r := NewRotator(endpoints, 20, zap.NewNop())

	attempts := 0
	start := time.Now()
	err := r.WithFailover(context.Background(), func(ctx context.Context, c *Client) error {
		attempts++
		if attempts < 3 {
			return errors.New("unreachable")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	// Two failed attempts mean two fixed 500ms pauses.
	require.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestWithFailoverNoDelayAfterLastAttempt(t *testing.T) {
	r := NewRotator([]string{"http://x.example"}, 20, zap.NewNop())

	start := time.Now()
	err := r.WithFailover(context.Background(), func(ctx context.Context, c *Client) error {
		return errors.New("unreachable")
	})

	require.Error(t, err)
	require.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestWithFailoverNonRetryableStopsEarly(t *testing.T) {
	fatal := errors.New("malformed request")
	r := NewRotator(
		[]string{"http://x.example", "http://y.example"},
		20,
		zap.NewNop(),
		WithRetryable(func(err error) bool { return !errors.Is(err, fatal) }),
	)
	r.delay = time.Millisecond

	attempts := 0
	err := r.WithFailover(context.Background(), func(ctx context.Context, c *Client) error {
		attempts++
		return fatal
	})

	require.ErrorIs(t, err, fatal)
	require.Equal(t, 1, attempts)
	// The cursor still rotated away from the failing endpoint.
	require.Equal(t, "http://y.example", r.Current().Endpoint())
}

func TestAdvanceWrapsAround(t *testing.T) {
	r := NewRotator([]string{"http://x.example", "http://y.example"}, 20, zap.NewNop())

	require.Equal(t, "http://x.example", r.Current().Endpoint())
	require.Equal(t, "http://y.example", r.Advance().Endpoint())
	require.Equal(t, "http://x.example", r.Advance().Endpoint())
}
