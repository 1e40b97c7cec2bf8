package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	apperrors "github.com/convoguard/convoguard/pkg/errors"
)

// RetryPolicy is the immutable per-component-class retry configuration
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
	// Jitter enables ±JitterFraction randomization of the delay
	Jitter bool
	// JitterFraction is the uniform jitter applied when Jitter is enabled
	JitterFraction float64
}

// DefaultRetryPolicy returns the generic external API policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		Jitter:         true,
		JitterFraction: 0.25,
	}
}

// PolicyFor returns the retry policy for a component class
func PolicyFor(component ComponentType) RetryPolicy {
	policy := DefaultRetryPolicy()

	switch component {
	case ComponentLLM:
		policy.MaxAttempts = 2
		policy.BaseDelay = 1 * time.Second
	case ComponentTool:
		policy.MaxAttempts = 3
		policy.BaseDelay = 500 * time.Millisecond
	case ComponentDatastore:
		policy.MaxAttempts = 3
		policy.BaseDelay = 200 * time.Millisecond
	case ComponentVectorSearch:
		policy.MaxAttempts = 2
		policy.BaseDelay = 1 * time.Second
	case ComponentPayment:
		policy.MaxAttempts = 2
		policy.BaseDelay = 3 * time.Second
	}

	return policy
}

// CalculateDelay returns min(base * multiplier^attempt, max), jittered by
// ±JitterFraction when enabled. The result is always within [0, MaxDelay].
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))

	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter && p.JitterFraction > 0 {
		delay += delay * p.JitterFraction * (2*rand.Float64() - 1)
	}

	if delay < 0 {
		delay = 0
	}
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt is warranted after the given
// error on the given attempt number (1-based).
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts {
		return false
	}

	if err == nil {
		return false
	}

	// A quarantined dependency will not recover within a retry loop.
	if IsBreakerOpen(err) {
		return false
	}

	// Cancellation halts the retry loop; the cancellation becomes terminal.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Validation and auth failures are non-transient.
	if apperrors.IsType(err, apperrors.ErrorTypeValidation) ||
		apperrors.IsType(err, apperrors.ErrorTypeAuthentication) ||
		apperrors.IsType(err, apperrors.ErrorTypeAuthorization) {
		return false
	}

	return true
}
