package resilience

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrorContext is the per-invocation record of one protected call: identity,
// component, operation, attempts, error history, and timing. It is owned
// exclusively by the call that created it and discarded when the call
// concludes; callers may snapshot its fields for logging before discard.
type ErrorContext struct {
	TenantID       string
	ConversationID string
	RequestID      string
	Component      ComponentType
	Operation      string
	AttemptCount   int
	LastError      error
	ErrorHistory   []string
	StartTime      time.Time
}

// NewErrorContext creates an error context for one protected call
func NewErrorContext(tenantID, conversationID string, component ComponentType, operation string) *ErrorContext {
	return &ErrorContext{
		TenantID:       tenantID,
		ConversationID: conversationID,
		RequestID:      uuid.New().String(),
		Component:      component,
		Operation:      operation,
		StartTime:      time.Now(),
	}
}

// RecordFailure appends the error to the history and sets the last error
func (ec *ErrorContext) RecordFailure(err error) {
	ec.LastError = err
	ec.ErrorHistory = append(ec.ErrorHistory, err.Error())
}

// Elapsed returns the time since the protected call started
func (ec *ErrorContext) Elapsed() time.Duration {
	return time.Since(ec.StartTime)
}

// Fields returns the context as structured log fields
func (ec *ErrorContext) Fields() logrus.Fields {
	fields := logrus.Fields{
		"tenant_id":       ec.TenantID,
		"conversation_id": ec.ConversationID,
		"request_id":      ec.RequestID,
		"component":       string(ec.Component),
		"operation":       ec.Operation,
		"attempt_count":   ec.AttemptCount,
		"elapsed_ms":      ec.Elapsed().Milliseconds(),
	}
	if ec.LastError != nil {
		fields["last_error"] = ec.LastError.Error()
	}
	return fields
}
