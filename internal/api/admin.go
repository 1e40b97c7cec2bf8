package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/convoguard/convoguard/pkg/governor"
)

// AdminHandler exposes governor operations for support tooling: usage lookup,
// manual cooldowns, and cooldown clearing.
type AdminHandler struct {
	governor *governor.Governor
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(g *governor.Governor) *AdminHandler {
	return &AdminHandler{governor: g}
}

type identityRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	CustomerID string `json:"customer_id" binding:"required"`
}

// GetUsage returns the identity's current minute and hour counts
func (h *AdminHandler) GetUsage(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	customerID := c.Query("customer_id")
	if tenantID == "" || customerID == "" {
		ErrorResponse(c, http.StatusBadRequest, "tenant_id and customer_id are required")
		return
	}

	minute, hour, err := h.governor.Usage(c.Request.Context(), tenantID, customerID, time.Now())
	if err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to read usage")
		return
	}

	SuccessResponse(c, gin.H{
		"tenant_id":    tenantID,
		"customer_id":  customerID,
		"minute_count": minute,
		"hour_count":   hour,
	})
}

// ApplySpamCooldown suspends an identity for the configured spam cooldown
func (h *AdminHandler) ApplySpamCooldown(c *gin.Context) {
	h.applyCooldown(c, h.governor.ApplySpamCooldown)
}

// ApplyAbuseCooldown suspends an identity for the configured abuse cooldown
func (h *AdminHandler) ApplyAbuseCooldown(c *gin.Context) {
	h.applyCooldown(c, h.governor.ApplyAbuseCooldown)
}

func (h *AdminHandler) applyCooldown(c *gin.Context, apply func(ctx context.Context, tenantID, customerID string, now time.Time) error) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "tenant_id and customer_id are required")
		return
	}

	if err := apply(c.Request.Context(), req.TenantID, req.CustomerID, time.Now()); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to apply cooldown")
		return
	}

	SuccessResponse(c, gin.H{"applied": true})
}

// ClearCooldowns removes any active cooldowns for an identity
func (h *AdminHandler) ClearCooldowns(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "tenant_id and customer_id are required")
		return
	}

	if err := h.governor.ClearCooldowns(c.Request.Context(), req.TenantID, req.CustomerID); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, "failed to clear cooldowns")
		return
	}

	SuccessResponse(c, gin.H{"cleared": true})
}
