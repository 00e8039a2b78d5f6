package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursehub-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursehub-backend/internal/http/middleware"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	CORSOrigins []string
	Metrics     *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware
	RateLimiter    *httpMW.RateLimiter
	// RateLimitPerMinute caps progress writes and playback events per user. Zero disables it.
	RateLimitPerMinute int

	HealthHandler   *httpH.HealthHandler
	ProgressHandler *httpH.ProgressHandler
	PlaybackHandler *httpH.PlaybackHandler
	AccessHandler   *httpH.AccessHandler
	BillingHandler  *httpH.BillingHandler
	RealtimeHandler *httpH.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.TraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", func(c *gin.Context) { cfg.Metrics.WriteHTTP(c.Writer, c.Request) })
	}

	limit := func(suffix string) gin.HandlerFunc {
		if cfg.RateLimiter == nil || cfg.RateLimitPerMinute <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return cfg.RateLimiter.Limit(suffix, cfg.RateLimitPerMinute, time.Minute)
	}
	required := func(c *gin.Context) { c.Next() }
	optional := required
	if cfg.AuthMiddleware != nil {
		required = cfg.AuthMiddleware.RequireAuth()
		optional = cfg.AuthMiddleware.OptionalAuth()
	}

	api := r.Group("/api")
	{
		// Webhooks (signed, no session)
		if cfg.BillingHandler != nil {
			api.POST("/webhooks/billing", cfg.BillingHandler.Webhook)
		}

		// Access decisions work for anonymous viewers too.
		if cfg.AccessHandler != nil {
			access := api.Group("/access", optional)
			access.GET("/:kind/:slug", cfg.AccessHandler.Content)
			access.GET("/:kind/:slug/lessons/:lessonId", cfg.AccessHandler.Lesson)
		}
	}

	protected := api.Group("/", required)
	{
		if cfg.AccessHandler != nil {
			protected.GET("/subscription", cfg.AccessHandler.Subscription)
		}

		// Progress
		if cfg.ProgressHandler != nil {
			protected.POST("/progress/lesson", limit("progress"), cfg.ProgressHandler.UpdateLesson)
			protected.GET("/progress/lesson", cfg.ProgressHandler.GetLesson)
			protected.GET("/progress/course", cfg.ProgressHandler.GetCourse)
			protected.POST("/progress/reset", cfg.ProgressHandler.Reset)
			protected.GET("/progress/debug", cfg.ProgressHandler.Debug)
			protected.GET("/progress/stats", cfg.ProgressHandler.Stats)
			protected.GET("/progress/recent", cfg.ProgressHandler.Recent)
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/progress/stream", cfg.RealtimeHandler.ProgressStream)
		}

		// Playback
		if cfg.PlaybackHandler != nil {
			protected.POST("/playback/sessions", cfg.PlaybackHandler.Start)
			protected.POST("/playback/sessions/:id/events", limit("playback"), cfg.PlaybackHandler.Event)
			protected.DELETE("/playback/sessions/:id", cfg.PlaybackHandler.Stop)
		}
	}

	return r
}
