package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func newTestBreaker(t *testing.T) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker("test", Config{
		MaxRequests:      1,
		Timeout:          20 * time.Millisecond,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	})
}

func fail(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func() error { return errBackend })
}

func succeed(cb *CircuitBreaker) error {
	return cb.Execute(context.Background(), func() error { return nil })
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, fail(cb), errBackend)
	}
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, succeed(cb), ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := newTestBreaker(t)

	require.ErrorIs(t, fail(cb), errBackend)
	require.ErrorIs(t, fail(cb), errBackend)
	require.NoError(t, succeed(cb))
	require.ErrorIs(t, fail(cb), errBackend)
	require.ErrorIs(t, fail(cb), errBackend)

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerClosesAfterProbeSuccesses(t *testing.T) {
	cb := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, fail(cb), errBackend)
	}
	time.Sleep(25 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, succeed(cb))
	require.NoError(t, succeed(cb))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	cb := newTestBreaker(t)

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, fail(cb), errBackend)
	}
	time.Sleep(25 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.ErrorIs(t, fail(cb), errBackend)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, succeed(cb), ErrCircuitOpen)
}

func TestBreakerRespectsContext(t *testing.T) {
	cb := newTestBreaker(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func() error {
		t.Fatal("must not run after cancellation")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
