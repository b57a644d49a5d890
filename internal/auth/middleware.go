package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys for admin identity
	ContextKeyAdminID  = "admin_id"
	ContextKeyUsername = "admin_username"
	ContextKeyRole     = "admin_role"
	ContextKeyClaims   = "admin_claims"
)

// Middleware creates a JWT authentication middleware for admin routes
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		c.Set(ContextKeyAdminID, claims.AdminID)
		c.Set(ContextKeyUsername, claims.Username)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// RequireRole ensures the admin has the given role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, exists := c.Get(ContextKeyRole)
		if !exists || current.(string) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   ErrForbidden.Code,
				"message": "role " + role + " required",
			})
			return
		}
		c.Next()
	}
}

// GetAdminID extracts the admin ID from the Gin context
func GetAdminID(c *gin.Context) string {
	if id, exists := c.Get(ContextKeyAdminID); exists {
		return id.(string)
	}
	return ""
}

// GetAdminClaims extracts the full claims from the Gin context
func GetAdminClaims(c *gin.Context) *AdminClaims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		return claims.(*AdminClaims)
	}
	return nil
}
