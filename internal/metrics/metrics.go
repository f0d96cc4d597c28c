// Package metrics exposes Prometheus collectors for the coin economy and
// the HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the service records.
type Metrics struct {
	coinsCredited   *prometheus.CounterVec
	coinsDebited    *prometheus.CounterVec
	taskCompletions *prometheus.CounterVec
	withdrawals     *prometheus.CounterVec
	authEvents      *prometheus.CounterVec
	failures        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	auditMismatches prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		coinsCredited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewardhub",
			Name:      "coins_credited_total",
			Help:      "Coins credited to users, by journal type.",
		}, []string{"type"}),
		coinsDebited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewardhub",
			Name:      "coins_debited_total",
			Help:      "Coins debited from users, by journal type.",
		}, []string{"type"}),
		taskCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewardhub",
			Name:      "task_completions_total",
			Help:      "Recorded task completions, by frequency.",
		}, []string{"frequency"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewardhub",
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests entering each status.",
		}, []string{"status"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewardhub",
			Name:      "auth_events_total",
			Help:      "Sign-up, sign-in and sign-out events.",
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewardhub",
			Name:      "operation_failures_total",
			Help:      "Failed core operations, by operation and error kind.",
		}, []string{"op", "kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rewardhub",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rewardhub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		auditMismatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rewardhub",
			Name:      "audit_balance_mismatches",
			Help:      "Users whose balance disagreed with the journal in the last audit.",
		}),
	}

	reg.MustRegister(
		m.coinsCredited,
		m.coinsDebited,
		m.taskCompletions,
		m.withdrawals,
		m.authEvents,
		m.failures,
		m.httpRequests,
		m.httpDuration,
		m.auditMismatches,
	)
	return m
}

// Credit records coins added to a balance.
func (m *Metrics) Credit(txType string, amount int64) {
	if m == nil {
		return
	}
	m.coinsCredited.WithLabelValues(txType).Add(float64(amount))
}

// Debit records coins removed from a balance.
func (m *Metrics) Debit(txType string, amount int64) {
	if m == nil {
		return
	}
	m.coinsDebited.WithLabelValues(txType).Add(float64(amount))
}

// TaskCompleted records a task completion.
func (m *Metrics) TaskCompleted(frequency string) {
	if m == nil {
		return
	}
	m.taskCompletions.WithLabelValues(frequency).Inc()
}

// Withdrawal records a request entering status.
func (m *Metrics) Withdrawal(status string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(status).Inc()
}

// AuthEvent records a sign-up, sign-in or sign-out.
func (m *Metrics) AuthEvent(event string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(event).Inc()
}

// Failure records a failed operation.
func (m *Metrics) Failure(op, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op, kind).Inc()
}

// AuditMismatches records the size of the last audit result.
func (m *Metrics) AuditMismatches(n int) {
	if m == nil {
		return
	}
	m.auditMismatches.Set(float64(n))
}

// statusRecorder captures the response code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Instrument returns middleware recording request counts and latency.
// route is evaluated after the handler ran so routers can report the
// matched pattern.
func (m *Metrics) Instrument(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			pattern := route(r)
			m.httpDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
			m.httpRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
		})
	}
}

// PoolStats is a point-in-time view of the database pool.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
}

// RegisterPool exports pool usage as gauges read at scrape time.
func RegisterPool(reg prometheus.Registerer, snapshot func() PoolStats) {
	gauge := func(name, help string, pick func(PoolStats) int32) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "rewardhub",
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(snapshot())) })
	}
	reg.MustRegister(
		gauge("connections", "Open connections.", func(s PoolStats) int32 { return s.Total }),
		gauge("idle_connections", "Idle connections.", func(s PoolStats) int32 { return s.Idle }),
		gauge("acquired_connections", "Connections in use.", func(s PoolStats) int32 { return s.Acquired }),
	)
}
