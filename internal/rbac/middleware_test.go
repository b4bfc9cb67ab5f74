package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tradeline/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(id auth.Identity, allowed ...string) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if id.OperatorID != "" {
			c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		}
		c.Next()
	}, RequireWorkspace(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	if code := serveAs(auth.Identity{OperatorID: "u", WorkspaceID: "w", Role: RoleSuperAdmin}, RoleOwner); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AllowedRole(t *testing.T) {
	if code := serveAs(auth.Identity{OperatorID: "u", WorkspaceID: "w", Role: RoleAnalyst}, RoleOwner, RoleAnalyst); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_OtherRoleForbidden(t *testing.T) {
	if code := serveAs(auth.Identity{OperatorID: "u", WorkspaceID: "w", Role: RoleAgent}, RoleOwner); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_UnknownRoleDeniedEvenIfListed(t *testing.T) {
	if code := serveAs(auth.Identity{OperatorID: "u", WorkspaceID: "w", Role: "network_operator"}, "network_operator"); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_WorkspaceRequired(t *testing.T) {
	if code := serveAs(auth.Identity{OperatorID: "u", Role: RoleOwner}, RoleOwner); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireAnyRole_NoIdentity(t *testing.T) {
	if code := serveAs(auth.Identity{}, RoleOwner); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
