package logger

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")
	l, closer := New("production", Options{File: path})
	l.Info("hello", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"hello"`) {
		t.Fatalf("unexpected log content %q", b)
	}
}

func TestFrom_FallsBackToDefault(t *testing.T) {
	if From(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	base, _ := New("local", Options{})

	var fromCtx *slog.Logger
	r := gin.New()
	r.Use(Middleware(base))
	r.GET("/x", func(c *gin.Context) {
		fromCtx = From(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "rid-1")
	r.ServeHTTP(w, req)

	if w.Header().Get(headerRequestID) != "rid-1" {
		t.Fatalf("expected request id echoed, got %q", w.Header().Get(headerRequestID))
	}
	if fromCtx == nil || fromCtx == slog.Default() {
		t.Fatalf("expected request scoped logger in context")
	}
}

func TestMiddleware_SummaryCarriesHandlerAttrs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Middleware(base, "/healthz"))
	r.POST("/hook", func(c *gin.Context) {
		AddAttrs(c, "event_kind", "voice_status")
		AddAttrs(c, "outcome", "forbidden")
		c.Status(http.StatusForbidden)
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/hook", nil))
	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, `"event_kind":"voice_status"`, `"outcome":"forbidden"`, `"status":403`} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %s: %q", want, out)
		}
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected no summary for quiet path, got %q", buf.String())
	}
}
