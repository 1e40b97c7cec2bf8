package resilience

// ComponentType classifies a downstream dependency for retry and breaker
// tuning and for fallback resolution.
type ComponentType string

const (
	// ComponentLLM - language model inference calls
	ComponentLLM ComponentType = "llm_inference"
	// ComponentTool - orchestrated tool invocations
	ComponentTool ComponentType = "tool_invocation"
	// ComponentDatastore - conversation/session datastore access
	ComponentDatastore ComponentType = "datastore"
	// ComponentExternalAPI - generic external HTTP APIs
	ComponentExternalAPI ComponentType = "external_api"
	// ComponentVectorSearch - vector similarity search
	ComponentVectorSearch ComponentType = "vector_search"
	// ComponentPayment - payment gateway calls
	ComponentPayment ComponentType = "payment_gateway"
)

func (c ComponentType) String() string {
	return string(c)
}
