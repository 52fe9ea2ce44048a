package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/store"
)

// ListNotifications handles GET /notifications.
func (s *Server) ListNotifications(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	f := store.NotificationFilter{
		UnreadOnly: c.Query("unread") == "true",
		Type:       core.Type(c.Query("type")),
		Page:       atoiDefault(c.Query("page"), 1),
		PerPage:    atoiDefault(c.Query("perPage"), 20),
	}

	page, err := s.orchestrator.List(c.Request.Context(), userID, f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetNotification handles GET /notifications/:id.
func (s *Server) GetNotification(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	n, err := s.orchestrator.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkNotificationRead handles POST /notifications/:id/read.
func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	n, err := s.orchestrator.MarkRead(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllRead handles POST /notifications/read-all.
func (s *Server) MarkAllRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	count, err := s.orchestrator.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// DeleteNotification handles DELETE /notifications/:id.
func (s *Server) DeleteNotification(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := s.orchestrator.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteAllNotifications handles DELETE /notifications.
func (s *Server) DeleteAllNotifications(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	count, err := s.orchestrator.DeleteAll(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": count})
}

// UnreadCount handles GET /notifications/unread-count.
func (s *Server) UnreadCount(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	count, err := s.orchestrator.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
