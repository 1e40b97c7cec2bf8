package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(t *testing.T, config BreakerConfig) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker("test-service", ComponentExternalAPI, config, nil)
}

func TestCircuitBreaker_ClosedPassThrough(t *testing.T) {
	cb := testBreaker(t, BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Second})

	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 5; i++ {
		result, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, StateClosed, cb.State())
	}
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	cb := testBreaker(t, BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("downstream failure")
		})
		require.Error(t, err)
		require.False(t, IsBreakerOpen(err), "original error must be returned, not a breaker error")
	}

	assert.Equal(t, StateOpen, cb.State())

	// While open the wrapped operation must never be invoked.
	invoked := false
	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		invoked = true
		return "should not run", nil
	})
	require.Error(t, err)
	assert.True(t, IsBreakerOpen(err))
	assert.False(t, invoked)

	var boErr *BreakerOpenError
	require.ErrorAs(t, err, &boErr)
	assert.Equal(t, "test-service", boErr.Service)
	assert.Equal(t, ComponentExternalAPI, boErr.Component)
	assert.Greater(t, boErr.RetryAfter, time.Duration(0))
}

func TestCircuitBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	cb := testBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Millisecond})

	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("downstream failure")
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenSingleFailureReopens(t *testing.T) {
	cb := testBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Millisecond})

	cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("downstream failure")
	})
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("still failing")
	})
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ThreeSuccessesClose(t *testing.T) {
	cb := testBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Millisecond, SuccessThreshold: 3})

	cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("downstream failure")
	})
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, StateHalfOpen, cb.State())
	}

	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("svc", ComponentLLM, BreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		OnStateChange: func(service string, component ComponentType, from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	}, nil)

	for i := 0; i < 2; i++ {
		cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, errors.New("downstream failure")
		})
	}

	require.Len(t, transitions, 1)
	assert.Equal(t, "CLOSED->OPEN", transitions[0])
}

func TestCircuitBreaker_PanicCountsAsFailure(t *testing.T) {
	cb := testBreaker(t, BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	assert.Panics(t, func() {
		cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
			panic("node blew up")
		})
	})

	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
}
