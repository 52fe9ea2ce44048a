package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/orchestrator"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/template"
)

// SendNotification handles POST /admin/notifications. Channel failures are
// reported per channel in the response; the send itself still succeeds.
func (s *Server) SendNotification(c *gin.Context) {
	var in orchestrator.SendInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}

	result, err := s.orchestrator.Send(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type bulkSendRequest struct {
	UserIDs []string               `json:"userIds"`
	Input   orchestrator.SendInput `json:"notification"`
}

// SendBulk handles POST /admin/notifications/bulk.
func (s *Server) SendBulk(c *gin.Context) {
	var req bulkSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}
	if len(req.UserIDs) == 0 {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeMissingField, "userIds is required"))
		return
	}

	result, err := s.orchestrator.SendBulk(c.Request.Context(), req.UserIDs, req.Input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type previewRequest struct {
	Type       core.Type              `json:"type"`
	TemplateID string                 `json:"templateId,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// PreviewNotification handles POST /admin/notifications/preview. It renders
// the resolved template without sending anything and reports which template
// variables the data bag is missing.
func (s *Server) PreviewNotification(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}
	if !req.Type.Valid() {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField,
			fmt.Sprintf("unknown notification type %q", req.Type)))
		return
	}

	tpl, ok := s.templates.Resolve(req.TemplateID, req.Type)
	if !ok {
		_ = c.Error(apperrors.NotFound(apperrors.CodeTemplateNotFound,
			fmt.Sprintf("no template for type %q", req.Type)))
		return
	}

	missing := template.ValidateVariables(tpl, req.Data)
	rendered := template.Render(tpl, req.Data)
	c.JSON(http.StatusOK, gin.H{
		"templateId":       tpl.ID,
		"subject":          rendered.Subject,
		"body":             rendered.Body,
		"htmlBody":         rendered.HTMLBody,
		"missingVariables": missing,
	})
}
