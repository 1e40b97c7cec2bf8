// Package guard applies guaranteed-continuity semantics around individual
// orchestrator processing steps. A node execution always yields a usable
// conversation state; no failure ever halts the pipeline.
package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/convoguard/convoguard/pkg/fallback"
	"github.com/convoguard/convoguard/pkg/logging"
	"github.com/convoguard/convoguard/pkg/metrics"
	"github.com/convoguard/convoguard/pkg/resilience"
	"github.com/convoguard/convoguard/pkg/tracing"
)

// ConversationState is the mutable state flowing between orchestrator nodes
type ConversationState map[string]interface{}

// Clone returns a copy of the state. Patches are merged into the copy so the
// caller's input is never mutated.
func (s ConversationState) Clone() ConversationState {
	copied := make(ConversationState, len(s)+4)
	for k, v := range s {
		copied[k] = v
	}
	return copied
}

// GetString returns the string at key, or empty when absent
func (s ConversationState) GetString(key string) string {
	if v, ok := s[key]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

// NodeFunc is one orchestrator processing step. Its internals are opaque to
// the guard; it returns an updated state or fails.
type NodeFunc func(ctx context.Context, state ConversationState) (ConversationState, error)

// Execution outcomes
const (
	OutcomeSuccess           = "success"
	OutcomeNodeFallback      = "node_fallback"
	OutcomeEmergencyFallback = "emergency_fallback"
)

// Guard wraps node executions with fallback resolution. ExecuteNode never
// fails the caller.
type Guard struct {
	catalog *fallback.Catalog
	logger  *logging.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Service
}

// Config holds guard construction options. Metrics and Tracer may be nil.
type Config struct {
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Tracer  *tracing.Service
}

// New creates a node execution guard over the given fallback catalog
func New(catalog *fallback.Catalog, config Config) *Guard {
	logger := config.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}

	return &Guard{
		catalog: catalog,
		logger:  logger,
		metrics: config.Metrics,
		tracer:  config.Tracer,
	}
}

// ExecuteNode runs one node against the conversation state. On success the
// node's result is returned unchanged. On any failure, including a panic, a
// per-node fallback patch is merged into a copy of the input state; if that
// resolution itself fails, an emergency patch is applied. The node is invoked
// exactly once: retrying a conversational side-effecting step risks duplicate
// effects.
func (g *Guard) ExecuteNode(ctx context.Context, node NodeFunc, state ConversationState, nodeName string, component resilience.ComponentType) ConversationState {
	start := time.Now()

	var span oteltrace.Span
	if g.tracer != nil {
		ctx, span = g.tracer.StartNodeSpan(ctx, nodeName)
	}

	result, outcome, err := g.run(ctx, node, state, nodeName, component)

	if span != nil {
		tracing.RecordError(span, err)
		if outcome != OutcomeSuccess {
			tracing.SetFallbackApplied(span)
		}
		span.End()
	}

	g.finish(ctx, nodeName, outcome, start, err)
	return result
}

func (g *Guard) run(ctx context.Context, node NodeFunc, state ConversationState, nodeName string, component resilience.ComponentType) (ConversationState, string, error) {
	result, err := g.invoke(ctx, node, state)
	if err == nil {
		if result == nil {
			result = state
		}
		return result, OutcomeSuccess, nil
	}

	patched, patchErr := g.applyNodeFallback(state, nodeName, component)
	if patchErr != nil {
		g.logger.WithContext(ctx).Error("Fallback resolution failed, applying emergency patch",
			"node", nodeName,
			"node_error", err.Error(),
			"resolution_error", patchErr.Error(),
		)
		return g.applyEmergencyFallback(state, nodeName), OutcomeEmergencyFallback, err
	}

	return patched, OutcomeNodeFallback, err
}

// invoke calls the node, converting a panic into an error
func (g *Guard) invoke(ctx context.Context, node NodeFunc, state ConversationState) (result ConversationState, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("node panicked: %v", r)
		}
	}()

	return node(ctx, state)
}

// applyNodeFallback resolves the per-node fallback patch and merges it into a
// copy of the state. A panic during resolution is reported as an error so the
// caller can fall through to the emergency patch.
func (g *Guard) applyNodeFallback(state ConversationState, nodeName string, component resilience.ComponentType) (result ConversationState, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("fallback resolution panicked: %v", r)
		}
	}()

	if g.catalog == nil {
		return nil, fmt.Errorf("no fallback catalog configured")
	}

	ec := &resilience.ErrorContext{
		TenantID:       state.GetString("tenant_id"),
		ConversationID: state.GetString("conversation_id"),
		RequestID:      state.GetString("request_id"),
		Component:      component,
		Operation:      nodeName,
		AttemptCount:   1,
		StartTime:      time.Now(),
	}

	payload := g.catalog.Get(component, nodeName, ec)

	out := state.Clone()
	for k, v := range payload.Data {
		out[k] = v
	}
	if payload.Message != "" {
		out["fallback_message"] = payload.Message
	}
	if payload.ErrorCode != "" {
		out["error_code"] = payload.ErrorCode
	}
	if payload.EscalationRequired {
		out["escalation_required"] = true
	}
	if payload.RequiresImmediateAttention {
		out["requires_immediate_attention"] = true
	}
	out["error_context"] = map[string]interface{}{
		"failed_node":      nodeName,
		"error_handled":    true,
		"fallback_applied": true,
	}

	return out, nil
}

// applyEmergencyFallback is the last line of defense when no typed fallback
// could be resolved: apologize, escalate, and keep the pipeline moving.
func (g *Guard) applyEmergencyFallback(state ConversationState, nodeName string) ConversationState {
	out := state.Clone()
	out["fallback_message"] = "I'm sorry, something went wrong on our side. Let me connect you with a person who can help."
	out["escalation_required"] = true
	out["escalation_reason"] = fmt.Sprintf("node '%s' failed and no fallback could be resolved", nodeName)
	out["requires_immediate_attention"] = true
	out["error_context"] = map[string]interface{}{
		"failed_node":      nodeName,
		"error_handled":    true,
		"fallback_applied": false,
	}
	return out
}

func (g *Guard) finish(ctx context.Context, nodeName, outcome string, start time.Time, err error) {
	g.metrics.RecordNodeExecution(nodeName, outcome)

	var fields logrus.Fields
	if err != nil {
		fields = logrus.Fields{"error": err.Error()}
	}
	g.logger.LogNodeEvent(ctx, nodeName, outcome, time.Since(start), fields)
}
