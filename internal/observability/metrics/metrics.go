package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightdash_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insightdash_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightdash_validation_failures_total",
		Help: "Payloads rejected by an insert contract, by entity",
	}, []string{"entity"})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightdash_auth_attempts_total",
		Help: "Register and login attempts by result",
	}, []string{"action", "result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insightdash_active_sessions",
		Help: "Number of unexpired sessions at the last sweep",
	})

	sessionsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insightdash_sessions_swept_total",
		Help: "Expired sessions removed by the sweeper",
	})

	ingestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "insightdash_ingest_duration_seconds",
		Help:    "Duration of data source ingestion jobs",
		Buckets: prometheus.DefBuckets,
	}, []string{"type", "result"})

	assistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightdash_assistant_requests_total",
		Help: "Assistant collaborator calls by result",
	}, []string{"result"})

	dashboardCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightdash_dashboard_cache_total",
		Help: "Dashboard aggregate cache lookups by result",
	}, []string{"result"})

	liveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insightdash_live_dashboard_subscribers",
		Help: "Open live dashboard websocket connections",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveValidationFailure counts a rejected payload for the entity
func ObserveValidationFailure(entity string) {
	validationFailures.WithLabelValues(entity).Inc()
}

// ObserveAuth counts a register or login attempt
func ObserveAuth(action, result string) {
	authAttempts.WithLabelValues(action, result).Inc()
}

// SetActiveSessions sets the active session gauge to a specific count.
func SetActiveSessions(count int64) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}

func ObserveSessionsSwept(count int64) {
	if count > 0 {
		sessionsSwept.Add(float64(count))
	}
}

// ObserveIngest records the duration of an ingestion job with a result label.
func ObserveIngest(sourceType, result string, duration time.Duration) {
	ingestDuration.WithLabelValues(sourceType, result).Observe(duration.Seconds())
}

func ObserveAssistant(result string) {
	assistantRequests.WithLabelValues(result).Inc()
}

func ObserveDashboardCache(hit bool) {
	if hit {
		dashboardCache.WithLabelValues("hit").Inc()
		return
	}
	dashboardCache.WithLabelValues("miss").Inc()
}

func IncLiveSubscribers() { liveSubscribers.Inc() }
func DecLiveSubscribers() { liveSubscribers.Dec() }
