package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fileops.io/notifyd/internal/core"
	apperrors "fileops.io/notifyd/internal/pkg/errors"
	"fileops.io/notifyd/internal/preference"
)

// GetPreferences handles GET /preferences.
func (s *Server) GetPreferences(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	prefs, err := s.preferences.Get(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences handles PUT /preferences. Omitted sections are left
// untouched; present sections replace their counterpart wholesale.
func (s *Server) UpdatePreferences(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var u preference.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}

	prefs, err := s.preferences.Update(c.Request.Context(), userID, u)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// ResetPreferences handles POST /preferences/reset.
func (s *Server) ResetPreferences(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	prefs, err := s.preferences.Reset(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SetChannelEnabled handles PUT /preferences/channels/:channel.
func (s *Server) SetChannelEnabled(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}

	ch := core.Channel(c.Param("channel"))
	prefs, err := s.preferences.SetChannelEnabled(c.Request.Context(), userID, ch, body.Enabled)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SetQuietHours handles PUT /preferences/quiet-hours.
func (s *Server) SetQuietHours(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var q core.QuietHours
	if err := c.ShouldBindJSON(&q); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}

	prefs, err := s.preferences.SetQuietHours(c.Request.Context(), userID, q)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// SetDigest handles PUT /preferences/digest.
func (s *Server) SetDigest(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var d core.DigestSettings
	if err := c.ShouldBindJSON(&d); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeInvalidRequestField, "invalid request body"))
		return
	}

	prefs, err := s.preferences.SetDigest(c.Request.Context(), userID, d)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}
