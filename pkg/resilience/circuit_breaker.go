package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/convoguard/convoguard/pkg/logging"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - circuit is closed, calls are allowed
	StateClosed CircuitState = iota
	// StateOpen - circuit is open, calls are rejected without invoking the operation
	StateOpen
	// StateHalfOpen - trial state, calls are allowed through to test recovery
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerOpenError signals an actively quarantined dependency. It is never
// retried and operations guarded by it are never invoked while it persists.
type BreakerOpenError struct {
	Service    string
	Component  ComponentType
	RetryAfter time.Duration
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker '%s:%s' is open (retry after %s)", e.Service, e.Component, e.RetryAfter)
}

// IsBreakerOpen checks if an error signals an open circuit breaker
func IsBreakerOpen(err error) bool {
	var boErr *BreakerOpenError
	return errors.As(err, &boErr)
}

// BreakerConfig holds tuning for one circuit breaker
type BreakerConfig struct {
	// FailureThreshold is the failure count at which a closed breaker opens
	FailureThreshold int
	// RecoveryTimeout is how long an open breaker rejects calls before
	// entering the half-open trial state
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the breaker
	SuccessThreshold int
	// OnStateChange is called whenever the breaker changes state
	OnStateChange func(service string, component ComponentType, from, to CircuitState)
}

// CircuitBreaker guards one (service, component) dependency. State reads and
// transitions are atomic relative to concurrent callers on the same key; the
// protected operation itself runs outside the lock.
type CircuitBreaker struct {
	service   string
	component ComponentType
	config    BreakerConfig

	mutex           sync.Mutex
	state           CircuitState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	logger *logging.Logger
}

// NewCircuitBreaker creates a circuit breaker for one dependency key
func NewCircuitBreaker(service string, component ComponentType, config BreakerConfig, logger *logging.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &CircuitBreaker{
		service:   service,
		component: component,
		config:    config,
		state:     StateClosed,
		logger:    logger,
	}
}

// Execute runs the operation if the breaker accepts it. The original error is
// returned unchanged after bookkeeping so callers can classify it.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := cb.beforeCall(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.afterCall(false)
			panic(r)
		}
	}()

	result, err := op(ctx)
	cb.afterCall(err == nil)
	return result, err
}

// State returns the current state, accounting for recovery timeout expiry
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.maybeEnterHalfOpen(time.Now())
	return cb.state
}

// FailureCount returns the current failure count
func (cb *CircuitBreaker) FailureCount() int {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.failureCount
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	cb.maybeEnterHalfOpen(now)

	if cb.state == StateOpen {
		remaining := cb.config.RecoveryTimeout - now.Sub(cb.lastFailureTime)
		if remaining < 0 {
			remaining = 0
		}
		return &BreakerOpenError{
			Service:    cb.service,
			Component:  cb.component,
			RetryAfter: remaining,
		}
	}

	return nil
}

func (cb *CircuitBreaker) afterCall(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := time.Now()
	if success {
		cb.onSuccess(now)
	} else {
		cb.onFailure(now)
	}
}

func (cb *CircuitBreaker) onSuccess(now time.Time) {
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.setState(StateClosed, now)
		}
	}
}

func (cb *CircuitBreaker) onFailure(now time.Time) {
	cb.failureCount++
	cb.lastFailureTime = now

	switch cb.state {
	case StateHalfOpen:
		// A single trial failure re-opens immediately, threshold or not.
		cb.setState(StateOpen, now)
	case StateClosed:
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.setState(StateOpen, now)
		}
	}
}

// maybeEnterHalfOpen transitions Open -> HalfOpen once the recovery timeout
// has elapsed since the last failure. Caller must hold the lock.
func (cb *CircuitBreaker) maybeEnterHalfOpen(now time.Time) {
	if cb.state == StateOpen && now.Sub(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
		cb.setState(StateHalfOpen, now)
	}
}

// setState performs a state transition. Caller must hold the lock.
// failureCount resets only on transition to Closed; successCount resets on
// entry to HalfOpen.
func (cb *CircuitBreaker) setState(state CircuitState, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	switch state {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
	case StateHalfOpen:
		cb.successCount = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.service, cb.component, prev, state)
	}

	cb.logger.LogBreakerEvent(cb.service, string(cb.component), prev.String(), state.String())
}
