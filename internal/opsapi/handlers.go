package opsapi

import (
	"context"
	"errors"
	"net/http"

	"tradeline/internal/auth"
	"tradeline/internal/jobs"
	"tradeline/internal/lifecycle"
	"tradeline/internal/rbac"
	"tradeline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JobLister is the read side of the processing queue.
type JobLister interface {
	ListByCall(ctx context.Context, callSid string) ([]jobs.Job, error)
}

// Handlers serves the operator read API. Keep these thin: parse input, call
// the stores, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Lifecycle lifecycle.Store
	Jobs      JobLister
}

type callResponse struct {
	Call     lifecycle.Record          `json:"call"`
	Timeline []lifecycle.TimelineEntry `json:"timeline"`
}

type jobsResponse struct {
	CallSid string     `json:"call_sid"`
	Jobs    []jobs.Job `json:"jobs"`
}

// Register mounts /v1/calls under r. Every route needs a bearer token carrying
// a workspace and an operator role. Reads are not filtered by workspace: any
// authorized operator sees every call.
func (h Handlers) Register(r gin.IRouter) {
	v1 := r.Group("/v1", auth.RequireToken(h.Auth))
	v1.Use(RequireWorkspaceAndAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleAnalyst)...)
	v1.GET("/calls/:call_sid", h.GetCall)
	v1.GET("/calls/:call_sid/jobs", h.ListCallJobs)
}

// GetCall returns the lifecycle record of a call with its full timeline.
func (h Handlers) GetCall(c *gin.Context) {
	if h.Lifecycle == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lifecycle store not configured"})
		return
	}
	callSid := c.Param("call_sid")
	if callSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_sid required"})
		return
	}

	ctx := c.Request.Context()
	rec, err := h.Lifecycle.GetLifecycle(ctx, callSid)
	if errors.Is(err, lifecycle.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("get lifecycle failed", "call_sid", callSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	timeline, err := h.Lifecycle.ListTimeline(ctx, callSid)
	if err != nil {
		logger.FromGin(c).Error("list timeline failed", "call_sid", callSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if timeline == nil {
		timeline = []lifecycle.TimelineEntry{}
	}
	c.JSON(http.StatusOK, callResponse{Call: rec, Timeline: timeline})
}

// ListCallJobs returns the follow-on jobs recorded for a call.
func (h Handlers) ListCallJobs(c *gin.Context) {
	if h.Jobs == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "job queue not configured"})
		return
	}
	callSid := c.Param("call_sid")

	list, err := h.Jobs.ListByCall(c.Request.Context(), callSid)
	if err != nil {
		logger.FromGin(c).Error("list jobs failed", "call_sid", callSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if list == nil {
		list = []jobs.Job{}
	}
	c.JSON(http.StatusOK, jobsResponse{CallSid: callSid, Jobs: list})
}

// Convenience middleware bundles.

func RequireWorkspaceAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireWorkspace(), rbac.RequireAnyRole(roles...)}
}
