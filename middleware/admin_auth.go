package middleware

import (
	"net/http"
	"strings"

	"skyquery-bot/internal/auth"
	"skyquery-bot/internal/logger"
	"skyquery-bot/utils"

	"github.com/gin-gonic/gin"
)

const adminSubjectKey = "admin_subject"

// AdminAuth requires a bearer token signed with secret and carrying the
// admin role.
func AdminAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			utils.RespondWithError(c, http.StatusUnauthorized, "unauthorized", "Bearer token required", nil)
			c.Abort()
			return
		}

		claims, err := auth.ParseAdminToken(secret, strings.TrimSpace(token))
		if err != nil {
			logger.Warn("Rejected admin token", "path", c.Request.URL.Path, "error", err)
			utils.RespondWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set(adminSubjectKey, claims.Subject)
		c.Next()
	}
}

// GetAdminSubject returns the authenticated admin's subject.
func GetAdminSubject(c *gin.Context) string {
	return c.GetString(adminSubjectKey)
}
