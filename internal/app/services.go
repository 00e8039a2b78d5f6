package app

import (
	"github.com/yungbote/coursehub-backend/internal/data/aggregates"
	"github.com/yungbote/coursehub-backend/internal/guards"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/keylock"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"github.com/yungbote/coursehub-backend/internal/playback"
	"github.com/yungbote/coursehub-backend/internal/realtime"
	"github.com/yungbote/coursehub-backend/internal/services"
	"gorm.io/gorm"
)

type Services struct {
	Progress     services.ProgressService
	Subscription services.SubscriptionService
	Catalog      services.CatalogService
	Guard        *guards.Guard
	Playback     *playback.Manager
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, clients Clients, reposet Repos, hub *realtime.Hub, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	locks := keylock.NewLocal()
	if clients.Redis != nil {
		emitter = &services.RedisEmitter{Bus: clients.Bus, Hub: hub, Log: log}
		locks = keylock.NewRedis(clients.Redis, log, keylock.RedisOptions{})
	}

	agg := aggregates.NewCourseProgressAggregate(aggregates.CourseProgressAggregateDeps{
		Write: aggregates.WriteDeps{
			DB:       db,
			Log:      log,
			Runner:   aggregates.NewGormTxRunner(db),
			Observer: aggregates.MetricsObserver(metrics),
		},
		Lessons: reposet.LessonProgress,
		Courses: reposet.CourseProgress,
		Locks:   locks,
	})

	progress := services.NewProgressService(services.ProgressServiceDeps{
		Log:        log,
		Aggregate:  agg,
		Lessons:    reposet.LessonProgress,
		Courses:    reposet.CourseProgress,
		Catalog:    reposet.Catalog,
		Notifier:   services.NewProgressNotifier(emitter),
		Subscriber: hub,
	})

	return Services{
		Progress:     progress,
		Subscription: services.NewSubscriptionService(log, reposet.User),
		Catalog:      services.NewCatalogService(log, reposet.Catalog),
		Guard:        guards.New(cfg.LoginPath),
		Playback:     playback.NewManager(log, progress, playback.ManagerConfig{}),
	}
}
