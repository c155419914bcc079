package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketplace"

// Outcome labels shared by the marketplace counters.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeUnavailable = "unavailable"
)

// Marketplace holds the marketplace collectors. A nil *Marketplace is a no-op.
type Marketplace struct {
	uploadGrants  *prometheus.CounterVec
	aiRequests    *prometheus.CounterVec
	aiDuration    *prometheus.HistogramVec
	expired       prometheus.Counter
	rateLimited   *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
	cronRuns      *prometheus.CounterVec
	cronDurations *prometheus.HistogramVec
}

// NewMarketplace registers the marketplace collectors on reg.
func NewMarketplace(reg prometheus.Registerer) *Marketplace {
	if reg == nil {
		return &Marketplace{}
	}
	m := &Marketplace{
		uploadGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_grants_total",
			Help:      "Upload grant requests by outcome.",
		}, []string{"outcome"}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_description_requests_total",
			Help:      "AI description requests by outcome.",
		}, []string{"outcome"}),
		aiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_description_duration_seconds",
			Help:      "Latency of AI description generation.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_expired_total",
			Help:      "Listings observed past expiry and flipped to expired.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit policy.",
		}, []string{"scope"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cronRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_job_runs_total",
			Help:      "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		cronDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cron_job_duration_seconds",
			Help:      "Scheduled job latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}
	reg.MustRegister(
		m.uploadGrants, m.aiRequests, m.aiDuration, m.expired, m.rateLimited,
		m.httpRequests, m.httpDurations, m.cronRuns, m.cronDurations,
	)
	return m
}

func (m *Marketplace) IncUploadGrant(outcome string) {
	if m == nil || m.uploadGrants == nil {
		return
	}
	m.uploadGrants.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveAIDescription counts one generation attempt and its latency.
func (m *Marketplace) ObserveAIDescription(outcome string, duration time.Duration) {
	if m == nil || m.aiRequests == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.aiRequests.WithLabelValues(outcome).Inc()
	m.aiDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Marketplace) IncListingExpired() {
	if m == nil || m.expired == nil {
		return
	}
	m.expired.Inc()
}

// AddListingsExpired counts listings flipped to expired by a background sweep.
func (m *Marketplace) AddListingsExpired(n int64) {
	if m == nil || m.expired == nil || n <= 0 {
		return
	}
	m.expired.Add(float64(n))
}

func (m *Marketplace) IncRateLimited(scope string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeLabel(scope)).Inc()
}

// ObserveHTTP records one request. route should be the chi route pattern, not the raw path.
func (m *Marketplace) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDurations.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Marketplace) ObserveCronJob(job, outcome string, duration time.Duration) {
	if m == nil || m.cronRuns == nil {
		return
	}
	job = normalizeLabel(job)
	m.cronRuns.WithLabelValues(job, normalizeLabel(outcome)).Inc()
	m.cronDurations.WithLabelValues(job).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
