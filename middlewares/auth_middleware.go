package middlewares

import (
	"net/http"
	"strings"

	"github.com/NandanNagane/dairy-sys/models"
	"github.com/NandanNagane/dairy-sys/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware verifies the bearer token and puts user_id/name/role into
// the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := utils.VerifyToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		if id, ok := claims["user_id"].(float64); ok {
			c.Set("user_id", uint(id))
		}
		c.Set("name", claims["name"])
		c.Set("role", claims["role"])
		c.Next()
	}
}

// AdminOnly rejects any caller whose token does not carry the ADMIN role.
// Must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if role != string(models.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
