package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/pkg/utils"
)

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		// First try to get token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// If not found in header, try query parameter (for WebSocket)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.JSON(401, gin.H{"error": "Authorization header or token query parameter required"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			c.JSON(401, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("userType", string(claims.UserType))
		c.Next()
	}
}

// RequireUserType lets only the given account types through.
func RequireUserType(types ...models.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType := models.UserType(c.GetString("userType"))
		for _, t := range types {
			if userType == t {
				c.Next()
				return
			}
		}
		c.JSON(403, gin.H{"error": "Your account type cannot perform this action"})
		c.Abort()
	}
}
