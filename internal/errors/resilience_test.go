package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	// Given: a function that fails twice then succeeds
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	// Then: it succeeds on the third attempt
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2.0}
	sentinel := errors.New("still down")

	attempts := 0
	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return sentinel
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestRetryWithResult_ContextCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultRetryConfig()
	_, err := RetryWithResult(ctx, cfg, func() (int, error) {
		t.Fatal("fn should not run after cancellation")
		return 0, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 3 failures
	cb := NewCircuitBreaker("embed",
		WithMaxFailures(3),
		WithResetTimeout(time.Second),
	)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errors.New("backend down") })
	}

	// Then: the circuit is open and calls are rejected without running
	assert.Equal(t, StateOpen, cb.State())
	err := cb.Execute(func() error {
		t.Fatal("fn should not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_FallbackWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker("embed", WithMaxFailures(1), WithResetTimeout(time.Minute))
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	// When: executing with a fallback
	got, err := CircuitExecuteWithResult(cb,
		func() ([]float32, error) { return []float32{1}, nil },
		func() ([]float32, error) { return nil, nil },
	)

	// Then: the fallback's empty result is returned
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("embed",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond),
	)
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	// When: the probe call succeeds
	err := cb.Execute(func() error { return nil })

	// Then: the circuit closes again
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}
