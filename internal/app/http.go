package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/yungbote/coursehub-backend/internal/http"
	httpH "github.com/yungbote/coursehub-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursehub-backend/internal/http/middleware"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/platform/session"
	"github.com/yungbote/coursehub-backend/internal/realtime"
	"gorm.io/gorm"
)

type Middleware struct {
	Auth      *httpMW.AuthMiddleware
	RateLimit *httpMW.RateLimiter
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Progress *httpH.ProgressHandler
	Playback *httpH.PlaybackHandler
	Access   *httpH.AccessHandler
	Billing  *httpH.BillingHandler
	Realtime *httpH.RealtimeHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, svc Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	if cfg.BillingWebhookSecret == "" {
		log.Warn("BILLING_WEBHOOK_SECRET not set; billing webhooks will be rejected")
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Progress: httpH.NewProgressHandler(log, svc.Progress),
		Playback: httpH.NewPlaybackHandler(log, svc.Playback),
		Access:   httpH.NewAccessHandler(log, svc.Guard, svc.Catalog, svc.Subscription),
		Billing:  httpH.NewBillingHandler(log, svc.Subscription, cfg.BillingWebhookSecret),
		Realtime: httpH.NewRealtimeHandler(log, hub),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config, clients Clients, svc Services) (Middleware, error) {
	log.Info("Wiring middleware...")
	verifier, err := session.NewVerifier(cfg.SessionSecret, cfg.SessionIssuer)
	if err != nil {
		return Middleware{}, fmt.Errorf("init session verifier: %w", err)
	}
	return Middleware{
		Auth:      httpMW.NewAuthMiddleware(log, verifier, svc.Subscription),
		RateLimit: httpMW.NewRateLimiter(log, clients.Redis),
	}, nil
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, mw Middleware, metrics *observability.Metrics) *gin.Engine {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:                log,
		ServiceName:        serviceName,
		CORSOrigins:        cfg.CORSOrigins(),
		Metrics:            metrics,
		AuthMiddleware:     mw.Auth,
		RateLimiter:        mw.RateLimit,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		HealthHandler:      handlers.Health,
		ProgressHandler:    handlers.Progress,
		PlaybackHandler:    handlers.Playback,
		AccessHandler:      handlers.Access,
		BillingHandler:     handlers.Billing,
		RealtimeHandler:    handlers.Realtime,
	})
}
