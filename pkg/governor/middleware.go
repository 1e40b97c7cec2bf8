package governor

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// IdentityExtractor resolves the (tenant, customer) identity from a request.
// Returning false skips governance for the request.
type IdentityExtractor func(c *gin.Context) (tenantID, customerID string, ok bool)

// HeaderIdentity extracts the identity from the X-Tenant-ID and
// X-Customer-ID headers.
func HeaderIdentity(c *gin.Context) (string, string, bool) {
	tenantID := c.GetHeader("X-Tenant-ID")
	customerID := c.GetHeader("X-Customer-ID")
	if tenantID == "" || customerID == "" {
		return "", "", false
	}
	return tenantID, customerID, true
}

// Middleware returns a Gin middleware that checks and increments the
// per-identity limits for inbound conversation messages. A store failure
// fails open: governance must never be the reason a conversation goes silent.
func (g *Governor) Middleware(extract IdentityExtractor) gin.HandlerFunc {
	if extract == nil {
		extract = HeaderIdentity
	}

	return func(c *gin.Context) {
		tenantID, customerID, ok := extract(c)
		if !ok {
			c.Next()
			return
		}

		now := time.Now()
		decision, err := g.Check(c.Request.Context(), tenantID, customerID, now)
		if err != nil {
			g.logger.Error("Rate limit check failed, allowing request",
				"tenant_id", tenantID,
				"customer_id", customerID,
				"error", err,
			)
			c.Next()
			return
		}

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfterSeconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "Rate limit exceeded",
				"reason":              decision.Reason,
				"retry_after_seconds": decision.RetryAfterSeconds,
			})
			c.Abort()
			return
		}

		if err := g.Increment(c.Request.Context(), tenantID, customerID, now); err != nil {
			g.logger.Error("Rate limit increment failed",
				"tenant_id", tenantID,
				"customer_id", customerID,
				"error", err,
			)
		}

		c.Next()
	}
}
