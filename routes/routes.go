package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/smartfarmlink/smartfarm-backend-go/config"
	"github.com/smartfarmlink/smartfarm-backend-go/handlers"
	"github.com/smartfarmlink/smartfarm-backend-go/metrics"
	customMiddleware "github.com/smartfarmlink/smartfarm-backend-go/middleware"
)

func SetupRoutes(e *echo.Echo, h *handlers.Handler, cfg *config.Config) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api")
	api.Use(customMiddleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst).Limit())
	api.Use(customMiddleware.Identity(cfg.JWTSecret))

	// Order routes
	api.POST("/orders", h.CreateOrder)
	api.GET("/orders/:id", h.GetOrder)
	api.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	api.PATCH("/orders/:id/payment", h.UpdatePaymentStatus)
	api.GET("/orders/buyer/:buyerId", h.GetBuyerOrders)
	api.GET("/orders/seller/:sellerId", h.GetSellerOrders)

	// Conversation routes
	api.POST("/conversations", h.CreateConversation)
	api.GET("/users/:userId/conversations", h.GetUserConversations)
	api.POST("/conversations/:id/messages", h.SendMessage)
	api.GET("/conversations/:id/messages", h.GetMessages)
	api.POST("/conversations/:id/seen", h.MarkSeen)
	api.GET("/conversations/:id/ws", h.WatchConversation)
}
