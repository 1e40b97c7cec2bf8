package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoguard/convoguard/pkg/fallback"
	"github.com/convoguard/convoguard/pkg/resilience"
)

func testState() ConversationState {
	return ConversationState{
		"tenant_id":       "tenant-1",
		"conversation_id": "conv-9",
		"request_id":      "req-abc",
		"message":         "where is my order?",
	}
}

func TestGuard_SuccessPassesResultThrough(t *testing.T) {
	g := New(fallback.NewCatalog(), Config{})

	result := g.ExecuteNode(context.Background(), func(ctx context.Context, state ConversationState) (ConversationState, error) {
		out := state.Clone()
		out["intent"] = "order_status"
		return out, nil
	}, testState(), "classify_intent", resilience.ComponentLLM)

	assert.Equal(t, "order_status", result["intent"])
	assert.NotContains(t, result, "error_context")
	assert.NotContains(t, result, "fallback_message")
}

func TestGuard_NodeErrorAppliesFallbackPatch(t *testing.T) {
	g := New(fallback.NewCatalog(), Config{})

	result := g.ExecuteNode(context.Background(), func(ctx context.Context, state ConversationState) (ConversationState, error) {
		return nil, errors.New("model endpoint unreachable")
	}, testState(), "classify_intent", resilience.ComponentLLM)

	require.NotNil(t, result)
	assert.Equal(t, "unknown", result["intent"])
	assert.Equal(t, "INTENT_CLASSIFICATION_UNAVAILABLE", result["error_code"])
	assert.NotEmpty(t, result["fallback_message"])

	ecMap, ok := result["error_context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "classify_intent", ecMap["failed_node"])
	assert.Equal(t, true, ecMap["error_handled"])
	assert.Equal(t, true, ecMap["fallback_applied"])
}

func TestGuard_InputStateIsNotMutated(t *testing.T) {
	g := New(fallback.NewCatalog(), Config{})
	input := testState()

	g.ExecuteNode(context.Background(), func(ctx context.Context, state ConversationState) (ConversationState, error) {
		return nil, errors.New("boom")
	}, input, "classify_intent", resilience.ComponentLLM)

	assert.NotContains(t, input, "error_context")
	assert.NotContains(t, input, "fallback_message")
	assert.Equal(t, "where is my order?", input.GetString("message"))
}

func TestGuard_PanicNeverEscapes(t *testing.T) {
	g := New(fallback.NewCatalog(), Config{})

	var result ConversationState
	assert.NotPanics(t, func() {
		result = g.ExecuteNode(context.Background(), func(ctx context.Context, state ConversationState) (ConversationState, error) {
			panic("nil map write")
		}, testState(), "lookup_order", resilience.ComponentTool)
	})

	require.NotNil(t, result)
	ecMap, ok := result["error_context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "lookup_order", ecMap["failed_node"])
	assert.Equal(t, true, ecMap["error_handled"])
}

func TestGuard_EmergencyPatchWhenNoCatalog(t *testing.T) {
	g := New(nil, Config{})

	result := g.ExecuteNode(context.Background(), func(ctx context.Context, state ConversationState) (ConversationState, error) {
		return nil, errors.New("boom")
	}, testState(), "generate_reply", resilience.ComponentLLM)

	require.NotNil(t, result)
	assert.Equal(t, true, result["escalation_required"])
	assert.Equal(t, true, result["requires_immediate_attention"])
	assert.Contains(t, result["escalation_reason"], "generate_reply")
	assert.NotEmpty(t, result["fallback_message"])

	ecMap, ok := result["error_context"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, ecMap["error_handled"])
	assert.Equal(t, false, ecMap["fallback_applied"])
}

func TestGuard_NilResultOnSuccessKeepsState(t *testing.T) {
	g := New(fallback.NewCatalog(), Config{})
	input := testState()

	result := g.ExecuteNode(context.Background(), func(ctx context.Context, state ConversationState) (ConversationState, error) {
		return nil, nil
	}, input, "noop_node", resilience.ComponentTool)

	assert.Equal(t, "where is my order?", result.GetString("message"))
}

func TestConversationState_Clone(t *testing.T) {
	original := testState()
	copied := original.Clone()

	copied["message"] = "changed"
	copied["new_key"] = 1

	assert.Equal(t, "where is my order?", original.GetString("message"))
	assert.NotContains(t, original, "new_key")
}

func TestConversationState_GetString(t *testing.T) {
	state := ConversationState{"a": "text", "b": 42}

	assert.Equal(t, "text", state.GetString("a"))
	assert.Equal(t, "", state.GetString("b"))
	assert.Equal(t, "", state.GetString("missing"))
}
