package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/webhook"
)

// CreateWebhook handles POST /webhooks. The signing secret is returned only
// on creation and regeneration.
func (s *Server) CreateWebhook(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var in webhook.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}

	hook, err := s.webhooks.Create(c.Request.Context(), userID, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"webhook": hook, "secret": hook.Secret})
}

// ListWebhooks handles GET /webhooks.
func (s *Server) ListWebhooks(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	hooks, err := s.webhooks.List(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhooks": hooks})
}

// GetWebhook handles GET /webhooks/:id.
func (s *Server) GetWebhook(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	hook, err := s.webhooks.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, hook)
}

// UpdateWebhook handles PATCH /webhooks/:id.
func (s *Server) UpdateWebhook(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var in webhook.UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}

	hook, err := s.webhooks.Update(c.Request.Context(), c.Param("id"), userID, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, hook)
}

// DeleteWebhook handles DELETE /webhooks/:id.
func (s *Server) DeleteWebhook(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	if err := s.webhooks.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TestWebhook handles POST /webhooks/:id/test. A failing endpoint is a
// successful test call: the failure is reported in the body, not the status.
func (s *Server) TestWebhook(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	result, err := s.webhooks.Test(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RegenerateWebhookSecret handles POST /webhooks/:id/regenerate-secret.
func (s *Server) RegenerateWebhookSecret(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	hook, err := s.webhooks.RegenerateSecret(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"webhook": hook, "secret": hook.Secret})
}
