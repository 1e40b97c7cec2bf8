package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/convoguard/convoguard/pkg/resilience"
)

// HealthChecker is implemented by stores that can report liveness
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler reports process health: the counter store connection and a
// snapshot of all circuit breaker states.
type HealthHandler struct {
	store    HealthChecker
	breakers *resilience.BreakerRegistry
}

// NewHealthHandler creates a new health handler. store may be nil when the
// process runs on the in-memory store.
func NewHealthHandler(store HealthChecker, breakers *resilience.BreakerRegistry) *HealthHandler {
	return &HealthHandler{
		store:    store,
		breakers: breakers,
	}
}

// HealthResponse is the health check response body
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
	Breakers  map[string]string      `json:"breakers"`
}

// HealthCheck is one dependency check result
type HealthCheck struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Handle serves the health check
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]HealthCheck),
		Breakers:  make(map[string]string),
	}

	if h.store != nil {
		start := time.Now()
		err := h.store.Health(ctx)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			response.Status = "unhealthy"
			response.Checks["store"] = HealthCheck{
				Status:    "unhealthy",
				Message:   err.Error(),
				LatencyMs: latency,
			}
		} else {
			response.Checks["store"] = HealthCheck{
				Status:    "healthy",
				LatencyMs: latency,
			}
		}
	}

	if h.breakers != nil {
		for key, state := range h.breakers.States() {
			response.Breakers[key.String()] = state.String()
			// An open breaker degrades the process but does not fail it.
			if state == resilience.StateOpen && response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
