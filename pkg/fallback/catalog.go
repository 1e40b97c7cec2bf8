// Package fallback provides the static catalog of canned responses and state
// patches used when a protected operation or orchestrator node cannot
// complete. The catalog is immutable after startup.
package fallback

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/convoguard/convoguard/pkg/resilience"
)

// Payload is one canned fallback: a substitute result, a user-facing message,
// an error-code token, and escalation flags. Before being handed back it is
// deep-copied and stamped with the caller's identifiers and attempt count.
type Payload struct {
	Success                    bool                   `json:"success"`
	Data                       map[string]interface{} `json:"data,omitempty"`
	Message                    string                 `json:"message,omitempty"`
	ErrorCode                  string                 `json:"error_code,omitempty"`
	EscalationRequired         bool                   `json:"escalation_required,omitempty"`
	RequiresImmediateAttention bool                   `json:"requires_immediate_attention,omitempty"`

	// Stamped from the caller's error context
	TenantID       string `json:"tenant_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	AttemptCount   int    `json:"attempt_count,omitempty"`
}

// GlobalKey is the catalog key of the global generic fallback
const GlobalKey = "default"

// Catalog is the static lookup of fallback payloads keyed by
// "component:operation", "component", or the global key.
type Catalog struct {
	entries map[string]Payload
}

// NewCatalog creates a catalog preloaded with the built-in defaults
func NewCatalog() *Catalog {
	return &Catalog{entries: defaultEntries()}
}

// LoadFile merges entries from a JSON asset over the built-in defaults. It is
// part of process startup; the catalog must not be mutated afterwards.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fallback catalog: %w", err)
	}

	var overrides map[string]Payload
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("failed to parse fallback catalog: %w", err)
	}

	for key, payload := range overrides {
		c.entries[key] = payload
	}
	return nil
}

// Get resolves the fallback for (component, operation): exact
// "component:operation" first, then the component-generic entry, then the
// global generic. The payload is deep-copied and stamped from ec.
func (c *Catalog) Get(component resilience.ComponentType, operation string, ec *resilience.ErrorContext) Payload {
	payload, ok := c.entries[fmt.Sprintf("%s:%s", component, operation)]
	if !ok {
		payload, ok = c.entries[string(component)]
	}
	if !ok {
		payload = c.entries[GlobalKey]
	}

	copied := payload
	copied.Data = deepCopyData(payload.Data)

	if ec != nil {
		copied.TenantID = ec.TenantID
		copied.ConversationID = ec.ConversationID
		copied.RequestID = ec.RequestID
		copied.AttemptCount = ec.AttemptCount
	}

	return copied
}

// deepCopyData clones the substitute data via a JSON round trip so callers
// can never mutate catalog state through a returned payload.
func deepCopyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]interface{}{}
	}

	copied := make(map[string]interface{}, len(data))
	if err := json.Unmarshal(raw, &copied); err != nil {
		return map[string]interface{}{}
	}
	return copied
}

func defaultEntries() map[string]Payload {
	return map[string]Payload{
		"llm_inference:classify_intent": {
			Success: false,
			Data: map[string]interface{}{
				"intent":     "unknown",
				"confidence": 0.0,
			},
			Message:   "I'm not quite sure what you need. Could you rephrase that?",
			ErrorCode: "INTENT_CLASSIFICATION_UNAVAILABLE",
		},
		"llm_inference:detect_language": {
			Success: false,
			Data: map[string]interface{}{
				"language": "en",
			},
			Message:   "",
			ErrorCode: "LANGUAGE_DETECTION_UNAVAILABLE",
		},
		"llm_inference": {
			Success:   false,
			Message:   "I'm having trouble putting that together right now. Please give me a moment and try again.",
			ErrorCode: "INFERENCE_UNAVAILABLE",
		},
		"tool_invocation": {
			Success:   false,
			Message:   "I couldn't complete that action right now. Please try again shortly.",
			ErrorCode: "TOOL_UNAVAILABLE",
		},
		"datastore": {
			Success:   false,
			Message:   "I couldn't look that up right now. Please try again in a moment.",
			ErrorCode: "DATASTORE_UNAVAILABLE",
		},
		"vector_search": {
			Success: false,
			Data: map[string]interface{}{
				"results": []interface{}{},
			},
			Message:   "I couldn't search our knowledge base just now.",
			ErrorCode: "SEARCH_UNAVAILABLE",
		},
		"external_api": {
			Success:   false,
			Message:   "One of our services is temporarily unavailable. Please try again shortly.",
			ErrorCode: "EXTERNAL_SERVICE_UNAVAILABLE",
		},
		"payment_gateway": {
			Success:                    false,
			Message:                    "We can't process payments at the moment. Your order has not been charged. A team member will follow up with you.",
			ErrorCode:                  "PAYMENT_UNAVAILABLE",
			EscalationRequired:         true,
			RequiresImmediateAttention: true,
		},
		GlobalKey: {
			Success:            false,
			Message:            "I'm sorry, something went wrong on our side. Would you like me to connect you with a person?",
			ErrorCode:          "SERVICE_DEGRADED",
			EscalationRequired: true,
		},
	}
}
