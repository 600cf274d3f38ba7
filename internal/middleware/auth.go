// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/storesight/catalog-backend/internal/utils"
)

// ServiceAuthRequired authenticates internal callers by their service token.
func ServiceAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			utils.UnauthorizedResponse(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := utils.ValidateServiceToken(parts[1])
		if err != nil {
			utils.UnauthorizedResponse(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("service_name", claims.ServiceName)
		c.Next()
	}
}
