package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failingCalls(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(context.Background(), func() error { return errBoom })
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3})

	failingCalls(cb, 3)
	require.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{FailureThreshold: 3})

	failingCalls(cb, 2)
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	failingCalls(cb, 2)

	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          10 * time.Millisecond,
	})

	failingCalls(cb, 2)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 2,
		Timeout:          10 * time.Millisecond,
	})

	failingCalls(cb, 2)
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	require.Equal(t, StateOpen, cb.State())
}

func TestBreakerLimitsHalfOpenProbes(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		MaxRequests:      1,
		Timeout:          10 * time.Millisecond,
	})

	failingCalls(cb, 2)
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))

	// Still half-open, and the single probe slot is used up.
	err := cb.Execute(context.Background(), func() error { return nil })
	require.ErrorIs(t, err, ErrTooManyRequests)
}

func TestBreakerDefaultThresholds(t *testing.T) {
	cb := NewCircuitBreaker("test", Config{})

	failingCalls(cb, 4)
	require.Equal(t, StateClosed, cb.State())

	failingCalls(cb, 1)
	require.Equal(t, StateOpen, cb.State())
}

func TestBreakerNotifiesStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("test", Config{
		FailureThreshold: 1,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	failingCalls(cb, 1)
	require.Equal(t, []string{"closed>open"}, transitions)
}
