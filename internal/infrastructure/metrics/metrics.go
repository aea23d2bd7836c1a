// Package metrics exposes Prometheus collectors for the matching core,
// notification delivery and the Telegram transport.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING
// ══════════════════════════════════════════════════════════════════════════════

var (
	// likesTotal counts like actions by outcome (liked, matched, repeat, rejected).
	likesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamermatch_likes_total",
		Help: "Total number of like actions by outcome",
	}, []string{"outcome"})

	// matchesTotal counts newly formed pairs.
	matchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamermatch_matches_total",
		Help: "Total number of mutual matches created",
	})

	// counterDriftTotal counts ledger counters repaired from set sizes.
	counterDriftTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamermatch_counter_drift_total",
		Help: "Total number of ledger counters repaired from set cardinality",
	}, []string{"counter"})

	// candidateRequestsTotal counts Next calls by result.
	candidateRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamermatch_candidate_requests_total",
		Help: "Total number of candidate requests by result",
	}, []string{"result"})

	// candidatePoolSize observes the eligible pool size per Next call.
	candidatePoolSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gamermatch_candidate_pool_size",
		Help:    "Eligible pool size seen by candidate selection",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// Like outcomes.
const (
	OutcomeLiked    = "liked"
	OutcomeMatched  = "matched"
	OutcomeRepeat   = "repeat"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Candidate results.
const (
	CandidateInterest = "interest"
	CandidateTopUp    = "topup"
	CandidateRandom   = "random"
	CandidateNone     = "none"
)

// RecordLike records a like action.
func RecordLike(outcome string) {
	likesTotal.WithLabelValues(outcome).Inc()
}

// RecordMatch records a newly formed pair.
func RecordMatch() {
	matchesTotal.Inc()
}

// RecordCounterDrift records a repaired ledger counter.
func RecordCounterDrift(counter string) {
	counterDriftTotal.WithLabelValues(counter).Inc()
}

// RecordCandidate records a Next call and the pool it scanned.
func RecordCandidate(result string, poolSize int) {
	candidateRequestsTotal.WithLabelValues(result).Inc()
	candidatePoolSize.Observe(float64(poolSize))
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

var (
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamermatch_notifications_total",
		Help: "Total number of notification attempts by kind and status",
	}, []string{"kind", "status"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gamermatch_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
)

// RecordNotification records a delivery attempt.
func RecordNotification(kind, status string) {
	notificationsTotal.WithLabelValues(kind, status).Inc()
}

// SetBreakerState records the state of a named circuit breaker.
func SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSPORT
// ══════════════════════════════════════════════════════════════════════════════

var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamermatch_telegram_updates_total",
		Help: "Total number of Telegram updates by route and status",
	}, []string{"route", "status"})

	updateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamermatch_telegram_update_duration_seconds",
		Help:    "Telegram update handling latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	rateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gamermatch_telegram_rate_limited_total",
		Help: "Total number of Telegram updates dropped by the per-user rate limiter",
	})
)

// RecordUpdate records a handled update.
func RecordUpdate(route, status string, d time.Duration) {
	updatesTotal.WithLabelValues(route, status).Inc()
	updateDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordRateLimited records an update dropped by the rate limiter.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

var (
	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamermatch_events_published_total",
		Help: "Total number of domain events published by type",
	}, []string{"type"})

	eventHandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamermatch_event_handler_duration_seconds",
		Help:    "Event handler latency in seconds by type and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"type", "status"})
)

// RecordEventPublished records a published event.
func RecordEventPublished(eventType string) {
	eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordEventHandled records one handler execution.
func RecordEventHandled(eventType string, d time.Duration, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	eventHandlerDuration.WithLabelValues(eventType, status).Observe(d.Seconds())
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP
// ══════════════════════════════════════════════════════════════════════════════

var httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "gamermatch_http_requests_total",
	Help: "Total number of HTTP requests to the service endpoints by path and status code",
}, []string{"path", "code"})

// RecordHTTPRequest records a served request. path must be a route pattern, not the raw URL.
func RecordHTTPRequest(path string, code int) {
	httpRequestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKGROUND JOBS
// ══════════════════════════════════════════════════════════════════════════════

var (
	jobRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamermatch_job_runs_total",
		Help: "Total number of scheduled job runs by job and status",
	}, []string{"job", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamermatch_job_duration_seconds",
		Help:    "Scheduled job duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// RecordJob records one scheduled job run.
func RecordJob(job string, d time.Duration, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	jobRunsTotal.WithLabelValues(job, status).Inc()
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
