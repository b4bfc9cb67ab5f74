package opsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tradeline/internal/auth"
	"tradeline/internal/config"
	"tradeline/internal/jobs"
	"tradeline/internal/lifecycle"
	"tradeline/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type fixture struct {
	router *gin.Engine
	auth   *auth.Manager
	store  *lifecycle.MemoryStore
	queue  *jobs.MemoryQueue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "secret", AccessTokenTTL: time.Minute})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	f := &fixture{
		router: gin.New(),
		auth:   m,
		store:  lifecycle.NewMemoryStore(),
		queue:  jobs.NewMemoryQueue(),
	}
	Handlers{Auth: m, Lifecycle: f.store, Jobs: f.queue}.Register(f.router)
	return f
}

func (f *fixture) get(t *testing.T, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		tok, err := f.auth.IssueAccess(time.Now(), auth.Identity{OperatorID: "op-1", WorkspaceID: "ws-1", Role: role})
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	rec := lifecycle.NewRecorder(f.store, f.queue)
	for _, ev := range []lifecycle.Event{
		{ProviderCallID: "CA1", Kind: lifecycle.KindRecordingStatus, Status: "completed", Label: lifecycle.LabelRecordingCompleted,
			IdempotencyKey: "CA1-RE1-completed", RawFields: map[string]string{"RecordingSid": "RE1", "RecordingUrl": "https://x/y"}},
	} {
		if _, err := rec.Process(ctx, ev); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestGetCall(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	w := f.get(t, "/v1/calls/CA1", rbac.RoleAnalyst)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body callResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Call.CallSid != "CA1" || body.Call.Status != lifecycle.LabelRecordingCompleted {
		t.Fatalf("unexpected call: %+v", body.Call)
	}
	if len(body.Timeline) != 1 || body.Timeline[0].IdempotencyKey != "CA1-RE1-completed" {
		t.Fatalf("unexpected timeline: %+v", body.Timeline)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	f := newFixture(t)
	if w := f.get(t, "/v1/calls/CA404", rbac.RoleOwner); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListCallJobs(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	w := f.get(t, "/v1/calls/CA1/jobs", rbac.RoleAgent)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body jobsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Jobs) != 1 || body.Jobs[0].Operation != jobs.OpTranscribeRecording {
		t.Fatalf("unexpected jobs: %+v", body.Jobs)
	}

	w = f.get(t, "/v1/calls/CA2/jobs", rbac.RoleAgent)
	if w.Code != http.StatusOK || w.Body.String() != `{"call_sid":"CA2","jobs":[]}` {
		t.Fatalf("expected empty list, got %d %s", w.Code, w.Body.String())
	}
}

func TestRequiresToken(t *testing.T) {
	f := newFixture(t)
	if w := f.get(t, "/v1/calls/CA1", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	if w := f.get(t, "/v1/calls/CA1", "finance"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
