package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/convoguard/convoguard/pkg/logging"
	"github.com/convoguard/convoguard/pkg/metrics"
)

// BreakerKey identifies one guarded dependency
type BreakerKey struct {
	Service   string
	Component ComponentType
}

func (k BreakerKey) String() string {
	return fmt.Sprintf("%s:%s", k.Service, k.Component)
}

// BreakerRegistry owns all circuit breakers for the process. Breakers are
// created lazily on first use per key and live for the process lifetime.
type BreakerRegistry struct {
	mutex    sync.Mutex
	breakers map[BreakerKey]*CircuitBreaker

	logger  *logging.Logger
	metrics *metrics.Metrics
	alerts  *AlertManager
}

// NewBreakerRegistry creates a breaker registry. metrics and alerts may be nil.
func NewBreakerRegistry(logger *logging.Logger, m *metrics.Metrics, alerts *AlertManager) *BreakerRegistry {
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &BreakerRegistry{
		breakers: make(map[BreakerKey]*CircuitBreaker),
		logger:   logger,
		metrics:  m,
		alerts:   alerts,
	}
}

// Get returns the breaker for (service, component), creating it with the
// component class tuning on first use.
func (r *BreakerRegistry) Get(service string, component ComponentType) *CircuitBreaker {
	key := BreakerKey{Service: service, Component: component}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	config := tuningFor(component)
	config.OnStateChange = r.onStateChange

	cb := NewCircuitBreaker(service, component, config, r.logger)
	r.breakers[key] = cb
	return cb
}

// States returns a snapshot of all breaker states for health surfaces
func (r *BreakerRegistry) States() map[BreakerKey]CircuitState {
	r.mutex.Lock()
	breakers := make(map[BreakerKey]*CircuitBreaker, len(r.breakers))
	for key, cb := range r.breakers {
		breakers[key] = cb
	}
	r.mutex.Unlock()

	states := make(map[BreakerKey]CircuitState, len(breakers))
	for key, cb := range breakers {
		states[key] = cb.State()
	}
	return states
}

func (r *BreakerRegistry) onStateChange(service string, component ComponentType, from, to CircuitState) {
	r.metrics.RecordBreakerTransition(service, string(component), from.String(), to.String())

	if to == StateOpen && r.alerts != nil {
		alert := Alert{
			Severity:    SeverityError,
			Title:       "Circuit Breaker Opened",
			Description: fmt.Sprintf("Dependency '%s:%s' is quarantined after repeated failures", service, component),
			Source:      "circuit_breaker",
			Tags: map[string]string{
				"breaker_service": service,
				"component":       string(component),
			},
		}
		if err := r.alerts.SendAlert(context.Background(), alert); err != nil {
			r.logger.Error("Failed to send breaker alert",
				"breaker_service", service,
				"component", string(component),
				"error", err,
			)
		}
	}
}

// tuningFor returns the breaker tuning for a component class. Payment-class
// dependencies trip earlier and quarantine longer than general APIs.
func tuningFor(component ComponentType) BreakerConfig {
	switch component {
	case ComponentPayment:
		return BreakerConfig{
			FailureThreshold: 3,
			RecoveryTimeout:  300 * time.Second,
			SuccessThreshold: 3,
		}
	case ComponentExternalAPI:
		return BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  120 * time.Second,
			SuccessThreshold: 3,
		}
	default:
		return BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
			SuccessThreshold: 3,
		}
	}
}
