package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/convoguard/convoguard/pkg/errors"
)

func TestPolicyFor_ComponentClasses(t *testing.T) {
	tests := []struct {
		component   ComponentType
		maxAttempts int
		baseDelay   time.Duration
	}{
		{ComponentLLM, 2, 1 * time.Second},
		{ComponentTool, 3, 500 * time.Millisecond},
		{ComponentDatastore, 3, 200 * time.Millisecond},
		{ComponentExternalAPI, 3, 2 * time.Second},
		{ComponentVectorSearch, 2, 1 * time.Second},
		{ComponentPayment, 2, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(string(tt.component), func(t *testing.T) {
			policy := PolicyFor(tt.component)
			assert.Equal(t, tt.maxAttempts, policy.MaxAttempts)
			assert.Equal(t, tt.baseDelay, policy.BaseDelay)
			assert.Equal(t, 2.0, policy.Multiplier)
			assert.True(t, policy.Jitter)
		})
	}
}

func TestRetryPolicy_CalculateDelay_GrowsAndCaps(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
	}

	var prev time.Duration
	for attempt := 0; attempt < 10; attempt++ {
		delay := policy.CalculateDelay(attempt)
		assert.GreaterOrEqual(t, delay, prev, "delay must not shrink without jitter")
		assert.LessOrEqual(t, delay, policy.MaxDelay)
		prev = delay
	}

	// Far past the cap the delay saturates exactly at MaxDelay.
	assert.Equal(t, policy.MaxDelay, policy.CalculateDelay(20))
}

func TestRetryPolicy_CalculateDelay_JitterStaysInBounds(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		JitterFraction: 0.25,
	}

	for i := 0; i < 200; i++ {
		delay := policy.CalculateDelay(1)
		assert.GreaterOrEqual(t, delay, 1500*time.Millisecond)
		assert.LessOrEqual(t, delay, 2500*time.Millisecond)
	}

	// Jitter never pushes a near-cap delay above the cap.
	for i := 0; i < 200; i++ {
		assert.LessOrEqual(t, policy.CalculateDelay(10), policy.MaxDelay)
	}
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}
	transient := errors.New("connection reset")

	t.Run("transient error below max attempts", func(t *testing.T) {
		assert.True(t, policy.ShouldRetry(1, transient))
		assert.True(t, policy.ShouldRetry(2, transient))
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(3, transient))
		assert.False(t, policy.ShouldRetry(4, transient))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(1, nil))
	})

	t.Run("open breaker", func(t *testing.T) {
		err := &BreakerOpenError{Service: "svc", Component: ComponentLLM, RetryAfter: time.Minute}
		assert.False(t, policy.ShouldRetry(1, err))
	})

	t.Run("context cancellation", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(1, context.Canceled))
		assert.False(t, policy.ShouldRetry(1, context.DeadlineExceeded))
	})

	t.Run("non-transient app errors", func(t *testing.T) {
		assert.False(t, policy.ShouldRetry(1, apperrors.NewValidationError("bad input")))
		assert.False(t, policy.ShouldRetry(1, apperrors.NewAuthenticationError("bad token")))
		assert.False(t, policy.ShouldRetry(1, apperrors.NewAuthorizationError("forbidden")))
	})

	t.Run("transient app error", func(t *testing.T) {
		assert.True(t, policy.ShouldRetry(1, apperrors.NewTransientError("upstream flaked")))
	})
}

func TestRetryPolicy_ShouldRetry_WrappedCancellation(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}
	wrapped := errors.Join(errors.New("rpc failed"), context.Canceled)
	require.False(t, policy.ShouldRetry(1, wrapped))
}
