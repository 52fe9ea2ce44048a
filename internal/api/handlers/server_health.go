package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Liveness handles GET /health/live.
func (s *Server) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /health/ready.
func (s *Server) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	if s.pool != nil {
		if err := s.pool.Ping(c.Request.Context()); err != nil {
			checks["database"] = "error"
			allHealthy = false
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "in-memory"
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{"status": status, "checks": checks})
}

// System handles GET /system. Live connection counts come from the
// websocket registry.
func (s *Server) System(c *gin.Context) {
	info := gin.H{"status": "ok"}
	if s.gateway != nil {
		reg := s.gateway.Registry()
		info["websocketConnections"] = reg.Count()
		info["websocketUsers"] = reg.UserCount()
	}
	c.JSON(http.StatusOK, info)
}
