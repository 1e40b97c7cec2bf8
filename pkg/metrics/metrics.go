package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the resilience core
type Metrics struct {
	// Circuit breaker metrics
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec

	// Retry/executor metrics
	RetryAttempts       *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	FallbackActivations *prometheus.CounterVec
	TerminalFailures    *prometheus.CounterVec

	// Node guard metrics
	NodeExecutions *prometheus.CounterVec

	// Governor metrics
	GovernorDecisions *prometheus.CounterVec
	CooldownsApplied  *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	Namespace string `json:"namespace"`
	Enabled   bool   `json:"enabled"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Namespace: "convoguard",
		Enabled:   true,
	}
}

// NewMetrics creates all Prometheus metrics
func NewMetrics(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Metrics{}
	}

	return &Metrics{
		BreakerTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "breaker_transitions_total",
				Help:      "Total number of circuit breaker state transitions",
			},
			[]string{"service", "component", "from", "to"},
		),
		BreakerRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "breaker_rejections_total",
				Help:      "Total number of calls rejected by an open circuit breaker",
			},
			[]string{"service", "component"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts for protected operations",
			},
			[]string{"component", "operation"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: config.Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Protected operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"component", "operation", "outcome"},
		),
		FallbackActivations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "fallback_activations_total",
				Help:      "Total number of fallback activations",
			},
			[]string{"component", "operation"},
		),
		TerminalFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "terminal_failures_total",
				Help:      "Total number of operations that exhausted retries with no fallback",
			},
			[]string{"component", "operation"},
		),
		NodeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "node_executions_total",
				Help:      "Total number of orchestrator node executions by outcome",
			},
			[]string{"node", "outcome"},
		),
		GovernorDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "governor_decisions_total",
				Help:      "Total number of governor rate limit decisions",
			},
			[]string{"reason"},
		),
		CooldownsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: config.Namespace,
				Name:      "cooldowns_applied_total",
				Help:      "Total number of cooldowns applied to conversation identities",
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registerer
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.BreakerTransitions,
		m.BreakerRejections,
		m.RetryAttempts,
		m.OperationDuration,
		m.FallbackActivations,
		m.TerminalFailures,
		m.NodeExecutions,
		m.GovernorDecisions,
		m.CooldownsApplied,
	}

	for _, c := range collectors {
		if c == nil {
			continue
		}
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns an HTTP handler exposing the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// The record helpers below are nil-safe so components can run without metrics.

// RecordBreakerTransition records a circuit breaker state transition
func (m *Metrics) RecordBreakerTransition(service, component, from, to string) {
	if m == nil || m.BreakerTransitions == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(service, component, from, to).Inc()
}

// RecordBreakerRejection records a fast-failed call against an open breaker
func (m *Metrics) RecordBreakerRejection(service, component string) {
	if m == nil || m.BreakerRejections == nil {
		return
	}
	m.BreakerRejections.WithLabelValues(service, component).Inc()
}

// RecordRetryAttempt records one retry of a protected operation
func (m *Metrics) RecordRetryAttempt(component, operation string) {
	if m == nil || m.RetryAttempts == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(component, operation).Inc()
}

// RecordOperation records the duration and outcome of a protected operation
func (m *Metrics) RecordOperation(component, operation, outcome string, duration time.Duration) {
	if m == nil || m.OperationDuration == nil {
		return
	}
	m.OperationDuration.WithLabelValues(component, operation, outcome).Observe(duration.Seconds())
}

// RecordFallbackActivation records a fallback activation
func (m *Metrics) RecordFallbackActivation(component, operation string) {
	if m == nil || m.FallbackActivations == nil {
		return
	}
	m.FallbackActivations.WithLabelValues(component, operation).Inc()
}

// RecordTerminalFailure records an operation that exhausted all options
func (m *Metrics) RecordTerminalFailure(component, operation string) {
	if m == nil || m.TerminalFailures == nil {
		return
	}
	m.TerminalFailures.WithLabelValues(component, operation).Inc()
}

// RecordNodeExecution records one node execution outcome
func (m *Metrics) RecordNodeExecution(node, outcome string) {
	if m == nil || m.NodeExecutions == nil {
		return
	}
	m.NodeExecutions.WithLabelValues(node, outcome).Inc()
}

// RecordGovernorDecision records one rate limit decision
func (m *Metrics) RecordGovernorDecision(reason string) {
	if m == nil || m.GovernorDecisions == nil {
		return
	}
	m.GovernorDecisions.WithLabelValues(reason).Inc()
}

// RecordCooldownApplied records an applied cooldown
func (m *Metrics) RecordCooldownApplied(kind string) {
	if m == nil || m.CooldownsApplied == nil {
		return
	}
	m.CooldownsApplied.WithLabelValues(kind).Inc()
}
