package auth

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tradeline/internal/config"
	"tradeline/pkg/logger"

	"github.com/gin-gonic/gin"
)

func TestRequireToken_AttributesRequestLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	tok, err := m.IssueAccess(time.Now(), Identity{OperatorID: "op-7", WorkspaceID: "ws-3", Role: "analyst"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var buf bytes.Buffer
	r := gin.New()
	r.Use(logger.Middleware(slog.New(slog.NewJSONHandler(&buf, nil))))
	var got Identity
	r.GET("/x", RequireToken(m), func(c *gin.Context) {
		got, _ = IdentityFrom(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent || got.WorkspaceID != "ws-3" {
		t.Fatalf("unexpected result %d %+v", w.Code, got)
	}
	if !strings.Contains(buf.String(), `"workspace_id":"ws-3"`) || !strings.Contains(buf.String(), `"operator_id":"op-7"`) {
		t.Fatalf("request summary not attributed: %q", buf.String())
	}
}

func TestRequireToken_RejectsMissingBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, err := NewManager(config.AuthConfig{JWTSecret: "secret"})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	r := gin.New()
	r.GET("/x", RequireToken(m), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
