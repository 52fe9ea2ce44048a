package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fileops.io/notifyd/internal/api/handlers"
	"fileops.io/notifyd/internal/api/middleware"
	"fileops.io/notifyd/internal/config"
)

func newRouter(cfg *config.Config, server *handlers.Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())

	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Probes stay unauthenticated.
	health := router.Group("/health")
	{
		health.GET("/live", server.Liveness)
		health.GET("/ready", server.Readiness)
	}

	auth := middleware.JWTAuth(cfg.Security.JWTSecret)

	// Token auth runs before the websocket upgrade.
	router.GET("/ws", auth, server.Websocket)

	api := router.Group("/api/v1", auth)
	server.RegisterRoutes(api)
	api.GET("/system", server.System)

	return router
}
