package resilience

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/convoguard/convoguard/pkg/logging"
	"github.com/convoguard/convoguard/pkg/metrics"
)

// Operation is one protected downstream call
type Operation func(ctx context.Context) (interface{}, error)

// Fallback produces a substitute result once retries are exhausted
type Fallback func(ctx context.Context, ec *ErrorContext) (interface{}, error)

// OperationError is the terminal wrapper raised only once retries and
// fallback are both exhausted. It carries the full error context snapshot
// plus the original cause; nothing above this layer observes a raw
// downstream error.
type OperationError struct {
	Operation    string
	Component    ComponentType
	Attempts     int
	Elapsed      time.Duration
	ErrorHistory []string
	Cause        error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation '%s' on %s failed after %d attempts in %s: %v",
		e.Operation, e.Component, e.Attempts, e.Elapsed.Round(time.Millisecond), e.Cause)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// NewOperationError builds the terminal error from an exhausted context
func NewOperationError(ec *ErrorContext) *OperationError {
	history := make([]string, len(ec.ErrorHistory))
	copy(history, ec.ErrorHistory)

	return &OperationError{
		Operation:    ec.Operation,
		Component:    ec.Component,
		Attempts:     ec.AttemptCount,
		Elapsed:      ec.Elapsed(),
		ErrorHistory: history,
		Cause:        ec.LastError,
	}
}

// ResilientExecutor runs one protected operation to a definite outcome by
// composing the breaker registry, the component's retry policy, and an
// optional fallback.
type ResilientExecutor struct {
	breakers *BreakerRegistry
	policies map[ComponentType]RetryPolicy
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// ExecutorConfig holds executor construction options
type ExecutorConfig struct {
	// Policies overrides the built-in per-component retry policies
	Policies map[ComponentType]RetryPolicy
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
}

// NewResilientExecutor creates an executor over the given breaker registry
func NewResilientExecutor(breakers *BreakerRegistry, config ExecutorConfig) *ResilientExecutor {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &ResilientExecutor{
		breakers: breakers,
		policies: config.Policies,
		logger:   logger,
		metrics:  config.Metrics,
	}
}

func (e *ResilientExecutor) policyFor(component ComponentType) RetryPolicy {
	if e.policies != nil {
		if policy, ok := e.policies[component]; ok {
			return policy
		}
	}
	return PolicyFor(component)
}

// Execute runs op against the (service, component) breaker with the
// component's retry policy. It returns the primary result, the fallback
// result, or a terminal *OperationError. Retry delays are cancellable; once
// ctx is done no further attempts are made and the cancellation becomes the
// terminal cause.
func (e *ResilientExecutor) Execute(ctx context.Context, service string, ec *ErrorContext, op Operation, fb Fallback) (interface{}, error) {
	policy := e.policyFor(ec.Component)
	breaker := e.breakers.Get(service, ec.Component)

	e.logger.WithContext(ctx).WithFields(ec.Fields()).Debug("Protected operation starting")

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			ec.RecordFailure(err)
			break
		}

		ec.AttemptCount++
		result, err := breaker.Execute(ctx, op)
		if err == nil {
			if attempt > 0 {
				e.logger.WithContext(ctx).WithFields(ec.Fields()).Info("Operation recovered after retry")
			}
			e.metrics.RecordOperation(string(ec.Component), ec.Operation, "success", ec.Elapsed())
			return result, nil
		}

		ec.RecordFailure(err)
		if IsBreakerOpen(err) {
			e.metrics.RecordBreakerRejection(service, string(ec.Component))
		}

		if !policy.ShouldRetry(ec.AttemptCount, err) {
			break
		}

		if attempt < policy.MaxAttempts-1 {
			delay := policy.CalculateDelay(attempt)
			e.logger.LogRetryEvent(ctx, string(ec.Component), ec.Operation, ec.AttemptCount, delay, err)
			e.metrics.RecordRetryAttempt(string(ec.Component), ec.Operation)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				ec.RecordFailure(ctx.Err())
				return e.conclude(ctx, ec, fb)
			case <-timer.C:
			}
		}
	}

	return e.conclude(ctx, ec, fb)
}

// conclude resolves an exhausted operation: fallback if supplied, terminal
// error otherwise.
func (e *ResilientExecutor) conclude(ctx context.Context, ec *ErrorContext, fb Fallback) (interface{}, error) {
	e.logger.WithContext(ctx).WithFields(ec.Fields()).Error("Operation failed after all attempts")

	if fb != nil {
		e.logger.LogFallbackEvent(ctx, string(ec.Component), ec.Operation, ec.AttemptCount, logrus.Fields{
			"error_history": strings.Join(ec.ErrorHistory, "; "),
		})
		e.metrics.RecordFallbackActivation(string(ec.Component), ec.Operation)

		result, err := fb(ctx, ec)
		if err == nil {
			e.metrics.RecordOperation(string(ec.Component), ec.Operation, "fallback", ec.Elapsed())
			return result, nil
		}

		// The fallback's own failure is logged separately; the terminal
		// error still carries the primary cause.
		e.logger.WithContext(ctx).WithFields(ec.Fields()).WithField("fallback_error", err.Error()).
			Error("Fallback failed")
	}

	e.metrics.RecordTerminalFailure(string(ec.Component), ec.Operation)
	e.metrics.RecordOperation(string(ec.Component), ec.Operation, "error", ec.Elapsed())
	return nil, NewOperationError(ec)
}
