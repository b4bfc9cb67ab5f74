package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"

	ginKeyLogger = "logger"
	ginKeyAttrs  = "log_attrs"
)

// Middleware returns a Gin middleware that injects request_id and logs one
// summary per request. Handlers add fields to the summary with AddAttrs.
// Paths in quiet are served without a summary line.
func Middleware(l *slog.Logger, quiet ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set(ginKeyLogger, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if _, ok := skip[path]; ok {
			return
		}

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"bytes_in", c.Request.ContentLength,
			"duration_ms", float64(time.Since(start).Milliseconds()),
		}
		if extra, ok := c.Get(ginKeyAttrs); ok {
			attrs = append(attrs, extra.([]any)...)
		}

		switch {
		case len(c.Errors) > 0:
			attrs = append(attrs, "errors", c.Errors.String())
			reqLogger.Error("request", attrs...)
		case status >= 500:
			reqLogger.Error("request", attrs...)
		case status == 401 || status == 403 || status == 413 || status == 429:
			reqLogger.Warn("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

// AddAttrs appends key/value pairs to the request summary line.
func AddAttrs(c *gin.Context, kv ...any) {
	var attrs []any
	if v, ok := c.Get(ginKeyAttrs); ok {
		attrs = v.([]any)
	}
	c.Set(ginKeyAttrs, append(attrs, kv...))
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginKeyLogger); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
