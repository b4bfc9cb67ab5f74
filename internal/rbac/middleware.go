package rbac

import (
	"net/http"

	"tradeline/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireWorkspace rejects identities without a workspace scope.
func RequireWorkspace() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil || id.WorkspaceID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "workspace_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// super_admin bypasses the check; unknown roles are always denied.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, err := auth.IdentityFrom(c.Request.Context())
		if err != nil || id.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsSuperAdmin(id.Role) {
			c.Next()
			return
		}
		if !IsKnown(id.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		if _, ok := allowedSet[id.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
