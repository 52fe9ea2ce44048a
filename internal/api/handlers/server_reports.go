package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "fileops.io/notifyd/internal/pkg/errors"
)

// DeliveryStats handles GET /reports/delivery-stats. Optional from/to query
// parameters (RFC 3339) bound the aggregation window.
func (s *Server) DeliveryStats(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	from, err := timeQuery(c, "from")
	if err != nil {
		_ = c.Error(err)
		return
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		_ = c.Error(err)
		return
	}

	stats, err := s.tracking.DeliveryStats(c.Request.Context(), userID, from, to)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// timeQuery parses an optional RFC 3339 query parameter.
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.BadRequest(apperrors.CodeInvalidRequestField,
			fmt.Sprintf("%s must be an RFC 3339 timestamp", key))
	}
	return &t, nil
}

// DeliveryHistory handles GET /notifications/:id/deliveries.
func (s *Server) DeliveryHistory(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	deliveries, err := s.tracking.History(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

// AuditTrail handles GET /notifications/:id/audit.
func (s *Server) AuditTrail(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	trail, err := s.tracking.AuditTrail(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": trail})
}

// UserAuditTrail handles GET /reports/audit.
func (s *Server) UserAuditTrail(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	trail, err := s.tracking.UserAuditTrail(c.Request.Context(), userID, atoiDefault(c.Query("limit"), 100))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": trail})
}

// RetryFailed handles POST /reports/retry-failed. Failed deliveries with
// attempts to spare go back to pending; the background sweep picks them up.
func (s *Server) RetryFailed(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	count, err := s.tracking.RetryAllFailed(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retried": count})
}
