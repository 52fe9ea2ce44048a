// Package handlers implements the HTTP API for the notification engine.
//
// Handlers bind request payloads, call the services, and either write the
// success response or push the error onto the gin context for the
// ErrorHandler middleware to translate.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"fileops.io/notifyd/internal/api/middleware"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/orchestrator"
	"fileops.io/notifyd/internal/preference"
	"fileops.io/notifyd/internal/realtime"
	"fileops.io/notifyd/internal/template"
	"fileops.io/notifyd/internal/tracking"
	"fileops.io/notifyd/internal/webhook"
)

// PermissionSend gates the admin send endpoints.
const PermissionSend = "notify:send"

// Server holds all API handlers.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	preferences  *preference.Service
	webhooks     *webhook.Service
	tracking     *tracking.Service
	gateway      *realtime.Gateway
	templates    *template.Registry
	pool         *pgxpool.Pool
}

// ServerDeps holds all dependencies for creating a Server. Manual DI, no
// wire/dig.
type ServerDeps struct {
	Orchestrator *orchestrator.Orchestrator
	Preferences  *preference.Service
	Webhooks     *webhook.Service
	Tracking     *tracking.Service
	Gateway      *realtime.Gateway
	Templates    *template.Registry
	Pool         *pgxpool.Pool // nil when running on the in-memory store
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		orchestrator: deps.Orchestrator,
		preferences:  deps.Preferences,
		webhooks:     deps.Webhooks,
		tracking:     deps.Tracking,
		gateway:      deps.Gateway,
		templates:    deps.Templates,
		pool:         deps.Pool,
	}
}

// RegisterRoutes mounts all API routes on the given group. The group is
// expected to already carry JWT auth; health and websocket routes are
// registered separately by the router.
func (s *Server) RegisterRoutes(api *gin.RouterGroup) {
	n := api.Group("/notifications")
	{
		n.GET("", s.ListNotifications)
		n.GET("/unread-count", s.UnreadCount)
		n.POST("/read-all", s.MarkAllRead)
		n.DELETE("", s.DeleteAllNotifications)
		n.GET("/:id", s.GetNotification)
		n.POST("/:id/read", s.MarkNotificationRead)
		n.DELETE("/:id", s.DeleteNotification)
		n.GET("/:id/deliveries", s.DeliveryHistory)
		n.GET("/:id/audit", s.AuditTrail)
	}

	p := api.Group("/preferences")
	{
		p.GET("", s.GetPreferences)
		p.PUT("", s.UpdatePreferences)
		p.POST("/reset", s.ResetPreferences)
		p.PUT("/channels/:channel", s.SetChannelEnabled)
		p.PUT("/quiet-hours", s.SetQuietHours)
		p.PUT("/digest", s.SetDigest)
	}

	w := api.Group("/webhooks")
	{
		w.POST("", s.CreateWebhook)
		w.GET("", s.ListWebhooks)
		w.GET("/:id", s.GetWebhook)
		w.PATCH("/:id", s.UpdateWebhook)
		w.DELETE("/:id", s.DeleteWebhook)
		w.POST("/:id/test", s.TestWebhook)
		w.POST("/:id/regenerate-secret", s.RegenerateWebhookSecret)
	}

	r := api.Group("/reports")
	{
		r.GET("/delivery-stats", s.DeliveryStats)
		r.GET("/audit", s.UserAuditTrail)
		r.POST("/retry-failed", s.RetryFailed)
	}

	admin := api.Group("/admin", middleware.RequirePermission(PermissionSend))
	{
		admin.POST("/notifications", s.SendNotification)
		admin.POST("/notifications/bulk", s.SendBulk)
		admin.POST("/notifications/preview", s.PreviewNotification)
	}
}

// callerID returns the authenticated user ID or fails the request.
func callerID(c *gin.Context) (string, bool) {
	userID := middleware.GetUserID(c.Request.Context())
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"code":    apperrors.CodeAuthFailed,
			"message": "authentication required",
		})
		return "", false
	}
	return userID, true
}
