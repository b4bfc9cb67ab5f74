package main

import (
	"net/http"
	"time"

	"tradeline/internal/opsapi"
	"tradeline/internal/ratelimit"
	"tradeline/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	r.GET("/healthz", func(c *gin.Context) {
		breakers := gin.H{"job_enqueue": d.enqueuer.State()}
		if d.dispatch != nil {
			breakers["transcription_dispatch"] = d.dispatch.State()
		}
		// The rate limiter fails open, so Redis is reported but never degrades.
		redisState := "ok"
		if err := utils.RedisHealthCheck(c.Request.Context(), d.rdb, time.Second); err != nil {
			redisState = err.Error()
		}
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error(), "redis": redisState, "breakers": breakers})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "redis": redisState, "breakers": breakers})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider webhooks: public, authenticated by request signature.
	d.webhooks.Register(r, ratelimit.Middleware(d.limiter, "webhooks"))

	opsapi.Handlers{Auth: d.auth, Lifecycle: d.lifecycle, Jobs: d.queue}.Register(r)
}
