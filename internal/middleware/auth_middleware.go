package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/groupavia/allotment-backend/internal/models"
	"github.com/groupavia/allotment-backend/pkg/jwt"
)

// Context keys set by the auth middleware and read by the handlers.
const (
	ContextUserID   = "user_id"
	ContextAgencyID = "agency_id"
	ContextRole     = "role"
)

// Authenticate validates the bearer token and stores the caller's identity
// on the request context.
func Authenticate(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextAgencyID, claims.AgencyID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole aborts the request unless the authenticated caller holds the
// given role.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextRole)
		if !exists || value.(string) != string(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}
