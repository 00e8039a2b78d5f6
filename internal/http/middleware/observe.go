package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// TraceContext stamps every request with a request id and a trace id, echoes both as
// response headers and stores them in the request context. Inbound ids are kept; an
// active otel span supplies the trace id before a random one is minted.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			RequestID: firstNonEmpty(c.GetHeader(HeaderRequestID)),
			TraceID:   firstNonEmpty(c.GetHeader(HeaderTraceID), spanTraceID(c)),
		}
		if td.RequestID == "" {
			td.RequestID = uuid.NewString()
		}
		if td.TraceID == "" {
			td.TraceID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Header(HeaderRequestID, td.RequestID)
		c.Header(HeaderTraceID, td.TraceID)
		c.Next()
	}
}

func spanTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// RequestLogger writes one line per request, at warn for 4xx and error for 5xx.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		began := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"route", firstNonEmpty(c.FullPath(), c.Request.URL.Path),
			"status", status,
			"duration_ms", time.Since(began).Milliseconds(),
		}
		ctx := c.Request.Context()
		if td := ctxutil.GetTraceData(ctx); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if sd := ctxutil.GetSessionData(ctx); sd != nil && sd.UserID != "" {
			fields = append(fields, "user_id", sd.UserID)
		}
		if errs := c.Errors.String(); errs != "" {
			fields = append(fields, "errors", errs)
		}
		logAt(log, status)("request", fields...)
	}
}

func logAt(log *logger.Logger, status int) func(string, ...any) {
	switch {
	case status >= 500:
		return log.Error
	case status >= 400:
		return log.Warn
	}
	return log.Info
}

// Metrics records count and latency per route template. The scrape route itself is not
// recorded.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		began := time.Now()
		m.ApiInflightInc()
		defer m.ApiInflightDec()
		c.Next()
		m.ObserveAPI(c.Request.Method, firstNonEmpty(c.FullPath(), "unmatched"), strconv.Itoa(c.Writer.Status()), time.Since(began))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
