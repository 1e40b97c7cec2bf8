package api

import (
	"github.com/gin-gonic/gin"

	"github.com/convoguard/convoguard/pkg/config"
	"github.com/convoguard/convoguard/pkg/governor"
	"github.com/convoguard/convoguard/pkg/logging"
	"github.com/convoguard/convoguard/pkg/metrics"
	"github.com/convoguard/convoguard/pkg/resilience"
)

// Dependencies holds everything the router wires together
type Dependencies struct {
	Config   *config.Config
	Logger   *logging.Logger
	Store    HealthChecker
	Breakers *resilience.BreakerRegistry
	Governor *governor.Governor
}

// NewRouter creates and configures the ops API router
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(deps.Logger))

	healthHandler := NewHealthHandler(deps.Store, deps.Breakers)
	router.GET("/health", healthHandler.Handle)

	if deps.Config == nil || deps.Config.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	router.GET("/api/v1", func(c *gin.Context) {
		SuccessResponse(c, gin.H{
			"name":    "ConvoGuard Ops API",
			"version": "1.0.0",
			"status":  "ok",
		})
	})

	adminHandler := NewAdminHandler(deps.Governor)

	v1 := router.Group("/api/v1")
	{
		gov := v1.Group("/governor")
		{
			gov.GET("/usage", adminHandler.GetUsage)
			gov.POST("/cooldowns/spam", adminHandler.ApplySpamCooldown)
			gov.POST("/cooldowns/abuse", adminHandler.ApplyAbuseCooldown)
			gov.DELETE("/cooldowns", adminHandler.ClearCooldowns)
		}
	}

	return router
}
