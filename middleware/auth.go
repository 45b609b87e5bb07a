package middleware

import (
	"net/http"
	"strings"

	"loyalty-engine/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ContextBusinessID = "business_id"
	ContextRole       = "user_role"
)

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if claims.BusinessID <= 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is not associated with a business"})
			c.Abort()
			return
		}

		c.Set(ContextBusinessID, claims.BusinessID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// BusinessMiddleware admits business owners and admins.
func BusinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		if role != utils.RoleBusiness && role != utils.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Business access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// BusinessID returns the business set by AuthMiddleware.
func BusinessID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ContextBusinessID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}
