package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/ballpit/backend/internal/api/handlers"
	"github.com/ballpit/backend/internal/config"
	"github.com/ballpit/backend/internal/middleware"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	// No-cache middleware in development
	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	// WebSocket endpoint (token handshake happens in-band via hello)
	router.GET("/ws", middleware.WebSocketCORSCheck(cfg), handlers.HandleArenaWebSocket())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(db, rdb))
		v1.GET("/config", handlers.GetConfig(cfg))

		v1.POST("/auth/guest", handlers.GuestAuth(db, rdb, cfg))

		authed := v1.Group("")
		authed.Use(handlers.AuthMiddleware(cfg))
		{
			authed.GET("/me", handlers.GetMe(db))

			arenas := authed.Group("/arenas")
			{
				arenas.POST("", handlers.CreateArena())
				arenas.GET("", handlers.ListArenas())
				arenas.GET("/:id", handlers.GetArenaDetail())
				arenas.POST("/:id/balls", handlers.SpawnArenaBall())
				arenas.DELETE("/:id/balls", handlers.RemoveNewestArenaBall())
				arenas.POST("/:id/clear", handlers.ClearArenaBalls())
			}

			authed.POST("/quickjoin", handlers.QuickJoin(db, rdb, cfg))
			authed.GET("/quickjoin/status", handlers.QuickJoinStatus(db))
		}

		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/login", handlers.AdminLogin(db, rdb, cfg))
			adminGroup.POST("/logout", handlers.AdminLogout(rdb))

			protected := adminGroup.Group("")
			protected.Use(handlers.AdminSessionMiddleware(rdb))
			{
				protected.GET("/me", handlers.AdminMe())
				protected.GET("/stats", handlers.GetAdminStats(db))
				protected.GET("/arenas", handlers.GetAdminArenas(db))
				protected.POST("/arenas/:id/close", handlers.ForceCloseArena(db))
				protected.GET("/config", handlers.GetAdminRuntimeConfig(db))
				protected.PUT("/config/:key", handlers.UpdateAdminRuntimeConfig(db, cfg))
				protected.GET("/audit", handlers.GetAdminAuditLogs(db))
			}
		}
	}
}
