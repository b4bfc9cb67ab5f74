package auth

import (
	"net/http"
	"strings"
	"time"

	"tradeline/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RequireToken verifies a bearer token and injects the identity into the request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tok := strings.TrimPrefix(raw, bearerPrefix)

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			logger.FromGin(c).Debug("ops token rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		id := claims.Identity()
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Set("operator_id", id.OperatorID)
		c.Set("workspace_id", id.WorkspaceID)
		c.Set("role", id.Role)
		logger.AddAttrs(c, "operator_id", id.OperatorID, "workspace_id", id.WorkspaceID)

		c.Next()
	}
}
