package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/coursehub-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *family
	apiLatency  *family
	apiInflight *family
	apiReqTotal *family
	apiReqError *family

	progressWrites     *family
	aggregateOps       *family
	aggregateConflicts *family
	aggregateRetries   *family
	lessonCompletions  *family
	premiumChecks      *family
	lazyExpiries       *family
	accessDecisions    *family
	billingEvents      *family
	rateLimited        *family
	playbackSessions   *family
	playbackEvents     *family
	realtimeClients    *family
	realtimePublishErr *family

	dbStats   *family
	redisUp   *family
	redisPing *family
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process metrics, or nil when metrics are disabled. Every method
// is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

// scrapeInterval reads METRICS_SCRAPE_INTERVAL_SECONDS, defaulting to 10s.
func scrapeInterval() time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return 10 * time.Second
}

func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: counter("ch_api_requests_total", "Total API requests by method/route/status.", "method", "route", "status"),
		apiLatency:  histogram("ch_api_request_duration_seconds", "API request latency in seconds by method/route/status.", []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}, "method", "route", "status"),
		apiInflight: gauge("ch_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: counter("ch_api_requests_total_all", "Total API requests (all)."),
		apiReqError: counter("ch_api_requests_error_total", "Total API requests with 5xx status."),

		progressWrites:     counter("ch_progress_writes_total", "Lesson progress writes by action/status.", "action", "status"),
		aggregateOps:       histogram("ch_aggregate_operation_duration_seconds", "Aggregate write latency in seconds by operation/status.", []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2}, "op", "status"),
		aggregateConflicts: counter("ch_aggregate_conflicts_total", "Aggregate writes that hit a conflict by operation.", "op"),
		aggregateRetries:   counter("ch_aggregate_retryable_total", "Aggregate writes that failed transiently by operation.", "op"),
		lessonCompletions:  counter("ch_lesson_completions_total", "Lesson completions by trigger.", "trigger"),
		premiumChecks:      counter("ch_premium_checks_total", "Premium resolutions by result.", "result"),
		lazyExpiries:       counter("ch_subscription_lazy_expiries_total", "Cancelled subscriptions expired at read time."),
		accessDecisions:    counter("ch_access_decisions_total", "Guard decisions by kind/outcome.", "kind", "outcome"),
		billingEvents:      counter("ch_billing_events_total", "Billing webhook events by event/status.", "event", "status"),
		rateLimited:        counter("ch_rate_limited_total", "Requests rejected by the rate limiter by route.", "route"),
		playbackSessions:   gauge("ch_playback_sessions_active", "Active playback tracking sessions."),
		playbackEvents:     counter("ch_playback_events_total", "Normalized player events by type.", "type"),
		realtimeClients:    gauge("ch_realtime_clients", "Connected realtime stream clients."),
		realtimePublishErr: counter("ch_realtime_publish_errors_total", "Realtime publishes that failed."),

		dbStats:   gauge("ch_db_pool", "Database connection pool stats.", "stat"),
		redisUp:   gauge("ch_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: gauge("ch_redis_ping_seconds", "Redis ping latency in seconds."),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, f := range []*family{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.progressWrites, m.aggregateOps, m.aggregateConflicts, m.aggregateRetries, m.lessonCompletions,
		m.premiumChecks, m.lazyExpiries, m.accessDecisions, m.billingEvents, m.rateLimited,
		m.playbackSessions, m.playbackEvents, m.realtimeClients, m.realtimePublishErr,
		m.dbStats, m.redisUp, m.redisPing,
	} {
		if err := f.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if strings.HasPrefix(status, "5") {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) ObserveProgressWrite(action, status string) {
	if m != nil {
		m.progressWrites.Inc(action, status)
	}
}

func (m *Metrics) ObserveAggregateOperation(op, status string, dur time.Duration) {
	if m != nil {
		m.aggregateOps.Observe(dur.Seconds(), op, status)
	}
}

func (m *Metrics) IncAggregateConflict(op string) {
	if m != nil {
		m.aggregateConflicts.Inc(op)
	}
}

func (m *Metrics) IncAggregateRetry(op string) {
	if m != nil {
		m.aggregateRetries.Inc(op)
	}
}

func (m *Metrics) IncLessonCompletion(trigger string) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "manual"
	}
	m.lessonCompletions.Inc(trigger)
}

func (m *Metrics) IncPremiumCheck(result string) {
	if m != nil {
		m.premiumChecks.Inc(result)
	}
}

func (m *Metrics) IncLazyExpiry() {
	if m != nil {
		m.lazyExpiries.Inc()
	}
}

func (m *Metrics) IncAccessDecision(kind, outcome string) {
	if m != nil {
		m.accessDecisions.Inc(kind, outcome)
	}
}

func (m *Metrics) IncBillingEvent(event, status string) {
	if m != nil {
		m.billingEvents.Inc(event, status)
	}
}

func (m *Metrics) IncRateLimited(route string) {
	if m != nil {
		m.rateLimited.Inc(route)
	}
}

func (m *Metrics) PlaybackSessionStarted() {
	if m != nil {
		m.playbackSessions.Inc()
	}
}

func (m *Metrics) PlaybackSessionEnded() {
	if m != nil {
		m.playbackSessions.Dec()
	}
}

func (m *Metrics) IncPlaybackEvent(eventType string) {
	if m != nil {
		m.playbackEvents.Inc(eventType)
	}
}

func (m *Metrics) RealtimeClientConnected() {
	if m != nil {
		m.realtimeClients.Inc()
	}
}

func (m *Metrics) RealtimeClientDisconnected() {
	if m != nil {
		m.realtimeClients.Dec()
	}
}

func (m *Metrics) IncRealtimePublishError() {
	if m != nil {
		m.realtimePublishErr.Inc()
	}
}

// StartDBCollector samples the gorm connection pool until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go poll(ctx, scrapeInterval(), func() {
		sqlDB, err := db.DB()
		if err != nil {
			warn(log, "db pool stats unavailable", err)
			return
		}
		st := sqlDB.Stats()
		for stat, v := range map[string]float64{
			"open_connections":      float64(st.OpenConnections),
			"in_use":                float64(st.InUse),
			"idle":                  float64(st.Idle),
			"wait_count":            float64(st.WaitCount),
			"wait_duration_seconds": st.WaitDuration.Seconds(),
			"max_open_connections":  float64(st.MaxOpenConnections),
		} {
			m.dbStats.Set(v, stat)
		}
	})
}

// StartRedisCollector pings through the shared client, which it never closes.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go poll(ctx, scrapeInterval(), func() {
		began := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			warn(log, "redis ping failed", err)
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(began).Seconds())
	})
}

func poll(ctx context.Context, every time.Duration, sample func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sample()
		}
	}
}
