package app

import (
	subscriptionHandler "billing-service/internal/handlers/subscription"
	wsHandler "billing-service/internal/handlers/websocket"
	"billing-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== WebSocket ====================
	ws := r.Group("/ws")
	ws.Use(h.AuthMiddleware.Auth())
	{
		ws.GET("", h.WSHandler.HandleConnection)
		ws.GET("/stats", h.WSHandler.GetStats)
	}

	// ==================== Purchases ====================
	purchases := api.Group("/purchases")
	purchases.Use(h.AuthMiddleware.Auth())
	{
		purchases.POST("/verify", h.SubscriptionHandler.VerifyPurchase)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		subscriptions.POST("/free", h.SubscriptionHandler.StartFree)
		subscriptions.GET("/me", h.SubscriptionHandler.GetStatus)
		subscriptions.GET("/me/trial-eligibility", h.SubscriptionHandler.GetTrialEligibility)
		subscriptions.DELETE("/me", h.SubscriptionHandler.DeleteSubscription)
	}
}
