package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	apperrors "fileops.io/notifyd/internal/pkg/errors"
)

// PermissionAdmin grants every permission check.
const PermissionAdmin = "platform:admin"

// RequirePermission rejects requests whose token lacks the named permission.
// Must run after JWTAuth.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if !hasPermission(claims, permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    apperrors.CodeForbidden,
				"message": "permission denied",
				"params":  gin.H{"required": permission},
			})
			return
		}
		c.Next()
	}
}

// RequireRole rejects requests whose token lacks the named role.
// Must run after JWTAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if !slices.Contains(claims.Roles, role) && !hasPermission(claims, PermissionAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    apperrors.CodeForbidden,
				"message": "role required",
				"params":  gin.H{"required": role},
			})
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *JWTClaims {
	v, ok := c.Get("claims")
	if !ok {
		return nil
	}
	claims, ok := v.(*JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func hasPermission(claims *JWTClaims, permission string) bool {
	return slices.Contains(claims.Permissions, permission) ||
		slices.Contains(claims.Permissions, PermissionAdmin)
}
