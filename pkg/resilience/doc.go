// Package resilience protects the conversational orchestration service from
// cascading downstream failures. It provides circuit breaking, retry with
// exponential backoff, a resilient executor that runs a protected operation
// to a definite outcome, and alerting on failure patterns.
//
// # Circuit Breaker Pattern
//
// Breakers are keyed by (service, component) and obtained from a registry so
// unrelated dependencies never contend on shared state:
//
//	registry := resilience.NewBreakerRegistry(logger, metrics, alerts)
//	cb := registry.Get("openai", resilience.ComponentLLM)
//
//	result, err := cb.Execute(ctx, func(ctx context.Context) (interface{}, error) {
//		return llmClient.Complete(ctx, prompt)
//	})
//
// While open, a breaker fails fast with *BreakerOpenError and the wrapped
// operation is never invoked. A single failure in the half-open trial state
// re-opens the breaker; three consecutive successes close it.
//
// # Retry with Exponential Backoff
//
// Retry policies are fixed per component class. Delays are computed as
// min(base * multiplier^attempt, max) with optional ±25% jitter, and are
// always context-cancellable:
//
//	policy := resilience.PolicyFor(resilience.ComponentTool)
//	delay := policy.CalculateDelay(attempt)
//
// # Resilient Execution
//
// The executor composes the breaker registry, the retry policy of the
// operation's component class, and an optional fallback. It returns the
// primary result, the fallback result, or a terminal *OperationError that
// carries the full error context. Callers never observe a raw downstream
// error:
//
//	ec := resilience.NewErrorContext(tenantID, conversationID, resilience.ComponentTool, "lookup_order")
//	result, err := executor.Execute(ctx, "order-service", ec, op, fallback)
//
// All state transitions are safe under concurrent callers; locking is scoped
// to a single breaker key.
package resilience
