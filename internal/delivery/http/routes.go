package http

import (
	"github.com/gin-gonic/gin"

	"github.com/hotbags/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/inbound", BearerAuthMiddleware(cfg.Inbound.BearerToken), handler.HandleInbound)
		v1.POST("/check", handler.PreviewCheck)

		deals := v1.Group("/deals")
		{
			deals.POST("", handler.CreateDeal)
			deals.GET("", handler.ListDeals)
			deals.GET("/:deal_id", handler.GetDeal)
			deals.POST("/:deal_id/reply", handler.Reply)
			deals.POST("/:deal_id/resolve", handler.Resolve)
			deals.POST("/:deal_id/published", handler.MarkPublished)
		}
	}

	return router
}
