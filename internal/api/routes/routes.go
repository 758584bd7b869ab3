// Package routes defines the HTTP routes for the TradePost Deal Service.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/tradepost/deal-service/internal/api/handlers"
	"github.com/tradepost/deal-service/internal/api/middleware"
	"github.com/tradepost/deal-service/internal/api/ws"
)

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler   *handlers.HealthHandler
	LeasesHandler   *handlers.LeasesHandler
	SessionsHandler *handlers.SessionsHandler
	WSHandler       *ws.Handler
	AuthMiddleware  *middleware.AuthMiddleware
}

// Setup configures all routes on the Gin engine.
func Setup(r *gin.Engine, cfg *Config) {
	// API v1 routes - all routes under /api/v1/deal-service
	v1 := r.Group("/api/v1/deal-service")
	{
		// Health check routes (no auth required)
		v1.GET("/health", cfg.HealthHandler.Health)
		v1.GET("/ready", cfg.HealthHandler.Ready)
		v1.GET("/live", cfg.HealthHandler.Live)

		// Apply auth middleware to protected API routes
		protected := v1.Group("")
		protected.Use(cfg.AuthMiddleware.Authenticate())

		// --- Lease Routes ---
		leases := protected.Group("/leases")
		{
			leases.POST("", cfg.LeasesHandler.CreateLease)
			leases.GET("", cfg.LeasesHandler.ListMyLeases)
			leases.POST("/:leaseId/cancel", cfg.LeasesHandler.CancelLease)
		}

		// Active lease lookup by product
		protected.GET("/products/:productId/lease", cfg.LeasesHandler.GetLeaseForProduct)

		// --- Chat Session Routes ---
		sessions := protected.Group("/sessions")
		{
			sessions.POST("", cfg.SessionsHandler.CreateOrGetSession)
			sessions.GET("", cfg.SessionsHandler.ListMySessions)
			sessions.GET("/:sessionId", cfg.SessionsHandler.GetSession)
			sessions.GET("/:sessionId/messages", cfg.SessionsHandler.GetMessages)
			sessions.POST("/:sessionId/messages", cfg.SessionsHandler.PostMessage)
			sessions.POST("/:sessionId/read", cfg.SessionsHandler.MarkRead)
		}

		// Live channel (auth runs before the upgrade)
		protected.GET("/ws", cfg.WSHandler.ServeWS)
	}
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware) {
	// Apply global middleware
	r.Use(loggingMw.Logger())
	r.Use(errorMw.Recovery())
	r.Use(gin.Recovery())
	r.Use(middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()))

	r.NoRoute(middleware.NotFound())
	r.NoMethod(middleware.MethodNotAllowed())

	// Setup routes
	Setup(r, cfg)
}
