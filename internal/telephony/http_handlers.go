package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"tradeline/internal/analytics"
	"tradeline/internal/lifecycle"
	"tradeline/internal/metrics"
	"tradeline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Processor persists an accepted event. Implemented by lifecycle.Recorder.
type Processor interface {
	Process(ctx context.Context, e lifecycle.Event) (lifecycle.Result, error)
}

// Emitter is the write-only analytics sink. Implemented by analytics.Service.
type Emitter interface {
	Emit(ctx context.Context, eventType analytics.EventType, data map[string]any, severity analytics.Severity) error
}

// WebhookHandler serves the provider status callbacks.
//
// Order of checks:
// - signature header: missing 401 before the body is read
// - body: over MaxBody 413, malformed form 400
// - signature: invalid 403, nothing is written
// - required fields: 400, nothing is written
// - allow-list: outside it, 200 with ignored=true, nothing is written
// - lifecycle upsert failure: 500
// Timeline, follow-on job and analytics failures never change the response.
type WebhookHandler struct {
	AuthToken     string
	PublicBaseURL string

	Recorder  Processor
	Analytics Emitter

	// MaxBody defaults to MaxWebhookBody.
	MaxBody int64
	Now     func() time.Time
}

const (
	PathVoiceStatus     = "/webhooks/twilio/voice-status"
	PathRecordingStatus = "/webhooks/twilio/recording-status"
	PathSMSStatus       = "/webhooks/twilio/sms-status"
)

// Register mounts the three status callbacks. mw runs before each handler
// (the rate limiter in production).
func (h WebhookHandler) Register(r gin.IRoutes, mw ...gin.HandlerFunc) {
	r.POST(PathVoiceStatus, chain(mw, h.VoiceStatus)...)
	r.POST(PathRecordingStatus, chain(mw, h.RecordingStatus)...)
	r.POST(PathSMSStatus, chain(mw, h.SMSStatus)...)
}

func chain(mw []gin.HandlerFunc, last gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, last)
}

func (h WebhookHandler) VoiceStatus(c *gin.Context) {
	h.handle(c, lifecycle.KindVoiceStatus)
}

func (h WebhookHandler) RecordingStatus(c *gin.Context) {
	h.handle(c, lifecycle.KindRecordingStatus)
}

func (h WebhookHandler) SMSStatus(c *gin.Context) {
	h.handle(c, lifecycle.KindSMSStatus)
}

func (h WebhookHandler) handle(c *gin.Context, kind lifecycle.EventKind) {
	log := logger.FromGin(c).With("event_kind", string(kind))
	start := time.Now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()
	outcome := func(o string) {
		metrics.WebhookRequests.WithLabelValues(string(kind), o).Inc()
		logger.AddAttrs(c, "event_kind", string(kind), "outcome", o)
	}

	if h.Now == nil {
		h.Now = time.Now
	}
	if h.AuthToken == "" || h.Recorder == nil {
		log.Error("webhook handler not configured")
		outcome("error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if signature == "" {
		log.Warn("webhook rejected: missing signature")
		outcome("unauthorized")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
		return
	}

	values, err := ParseStatusForm(c.Request, h.MaxBody)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			outcome("invalid")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		log.Warn("webhook form parse failed", "err", err)
		outcome("invalid")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	signedURL := RequestURL(c.Request, h.PublicBaseURL)
	if !ValidateSignatureValues(signedURL, values, signature, h.AuthToken) {
		log.Warn("webhook rejected: invalid signature", "url", signedURL)
		outcome("forbidden")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	ev, err := Normalize(kind, Fields(values), h.Now().UTC())
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			log.Warn("webhook rejected: missing fields", "missing", verr.Missing)
			outcome("invalid")
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing required fields", "fields": verr.Missing})
		case errors.Is(err, ErrIgnoredEvent):
			log.Info("webhook ignored: status not in allow-list", "status", statusOf(kind, values.Get))
			outcome("ignored")
			c.JSON(http.StatusOK, gin.H{"success": true, "ignored": true})
		default:
			log.Error("webhook normalize failed", "err", err)
			outcome("error")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	log = log.With("call_sid", ev.ProviderCallID, "idempotency_key", ev.IdempotencyKey)
	logger.AddAttrs(c, "call_sid", ev.ProviderCallID)
	ctx := logger.With(c.Request.Context(), log)

	res, err := h.Recorder.Process(ctx, ev)
	if err != nil {
		log.Error("webhook processing failed", "err", err)
		outcome("error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.emit(ctx, log, ev, res)

	if res.TimelineInserted {
		outcome("accepted")
	} else {
		outcome("duplicate")
	}
	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"status":           ev.Label.String(),
		"event":            string(ev.Kind),
		"provider_call_id": ev.ProviderCallID,
		"idempotency_key":  ev.IdempotencyKey,
	})
}

var analyticsTypes = map[lifecycle.EventKind]analytics.EventType{
	lifecycle.KindVoiceStatus:     analytics.EventTwilioVoiceStatus,
	lifecycle.KindRecordingStatus: analytics.EventTwilioRecordingStatus,
	lifecycle.KindSMSStatus:       analytics.EventTwilioSMSStatus,
}

func (h WebhookHandler) emit(ctx context.Context, log *slog.Logger, ev lifecycle.Event, res lifecycle.Result) {
	if h.Analytics == nil {
		return
	}
	data := map[string]any{
		"call_sid":          ev.ProviderCallID,
		"status":            ev.Status,
		"label":             ev.Label.String(),
		"idempotency_key":   ev.IdempotencyKey,
		"duplicate":         !res.TimelineInserted,
		"lifecycle_applied": res.LifecycleApplied,
		"job_enqueued":      res.JobEnqueued,
	}
	for _, f := range []string{"RecordingSid", "RecordingDuration", "CallDuration", "From", "To", "ErrorCode"} {
		if v := ev.RawFields[f]; v != "" {
			data[f] = v
		}
	}
	if err := h.Analytics.Emit(ctx, analyticsTypes[ev.Kind], data, analytics.SeverityInfo); err != nil {
		metrics.DownstreamFailures.WithLabelValues("analytics").Inc()
		log.Warn("analytics emit failed", "err", err)
	}
}

func statusOf(kind lifecycle.EventKind, get func(string) string) string {
	if s, ok := schemas[kind]; ok {
		return get(s.statusField)
	}
	return ""
}
