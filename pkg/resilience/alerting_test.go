package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertManager_DeliversToAllHandlers(t *testing.T) {
	am := NewAlertManager(nil)

	first := &capturingAlertHandler{received: make(chan Alert, 1)}
	second := &capturingAlertHandler{received: make(chan Alert, 1)}
	am.AddHandler(first)
	am.AddHandler(second)

	err := am.SendAlert(context.Background(), Alert{
		Severity: SeverityWarning,
		Title:    "Abuse Cooldown Applied",
		Source:   "governor",
	})
	require.NoError(t, err)

	delivered := <-first.received
	assert.Equal(t, "Abuse Cooldown Applied", delivered.Title)
	assert.NotEmpty(t, delivered.ID)
	assert.False(t, delivered.Timestamp.IsZero())

	assert.Len(t, second.received, 1)
}

func TestAlertManager_HandlerFailureDoesNotBlockOthers(t *testing.T) {
	am := NewAlertManager(nil)

	am.AddHandler(&failingAlertHandler{})
	ok := &capturingAlertHandler{received: make(chan Alert, 1)}
	am.AddHandler(ok)

	err := am.SendAlert(context.Background(), Alert{Source: "governor", Title: "test"})
	require.NoError(t, err, "one surviving handler is a successful delivery")
	assert.Len(t, ok.received, 1)
}

func TestAlertManager_AllHandlersFailing(t *testing.T) {
	am := NewAlertManager(nil)
	am.AddHandler(&failingAlertHandler{})

	err := am.SendAlert(context.Background(), Alert{Source: "governor", Title: "test"})
	assert.Error(t, err)
}

func TestAlertManager_PerSourceRateLimit(t *testing.T) {
	am := NewAlertManager(nil)
	handler := &capturingAlertHandler{received: make(chan Alert, 200)}
	am.AddHandler(handler)

	for i := 0; i < 100; i++ {
		require.NoError(t, am.SendAlert(context.Background(), Alert{Source: "circuit_breaker", Title: "open"}))
	}

	err := am.SendAlert(context.Background(), Alert{Source: "circuit_breaker", Title: "open"})
	assert.Error(t, err, "the 101st alert from one source within the window is dropped")

	// Other sources keep their own budget.
	assert.NoError(t, am.SendAlert(context.Background(), Alert{Source: "governor", Title: "cooldown"}))
}

func TestAlertSeverity_String(t *testing.T) {
	assert.Equal(t, "INFO", SeverityInfo.String())
	assert.Equal(t, "WARNING", SeverityWarning.String())
	assert.Equal(t, "ERROR", SeverityError.String())
	assert.Equal(t, "CRITICAL", SeverityCritical.String())
}

type failingAlertHandler struct{}

func (h *failingAlertHandler) HandleAlert(ctx context.Context, alert Alert) error {
	return errors.New("webhook unreachable")
}

func (h *failingAlertHandler) Name() string {
	return "failing"
}
