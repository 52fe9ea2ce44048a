package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "fileops.io/notifyd/internal/pkg/errors"
)

func errorRouter(err error) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/fail", func(c *gin.Context) {
		_ = c.Error(err)
	})
	return r
}

func TestErrorHandler_AppError(t *testing.T) {
	r := errorRouter(apperrors.NotFound(apperrors.CodeWebhookNotFound, "webhook not found"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeWebhookNotFound)
	assert.Contains(t, w.Body.String(), "webhook not found")
}

func TestErrorHandler_BareSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"not found", apperrors.ErrNotFound, http.StatusNotFound},
		{"forbidden", apperrors.ErrForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			errorRouter(tt.err).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestErrorHandler_UnknownErrorIsInternal(t *testing.T) {
	r := errorRouter(assert.AnError)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeInternal)
}
