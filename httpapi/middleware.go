package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gigchat/auth"
)

const userIDKey = "user_id"

// AuthMiddleware resolves the bearer credential and injects the user id
// into the request context. Everything behind it can trust that
// resolution.
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "permission", "detail": "missing bearer token"})
			return
		}
		credential := strings.TrimPrefix(header, "Bearer ")

		userID, err := authService.Resolve(credential)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "permission", "detail": "invalid or expired token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
