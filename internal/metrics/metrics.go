// Package metrics exposes the Prometheus instrumentation of the
// service: HTTP traffic, flush pipeline timing and rule engine runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	commitsTotal   *prometheus.CounterVec
	commitDuration prometheus.Histogram

	ruleRunsTotal   *prometheus.CounterVec
	ruleViolations  prometheus.Gauge
	loginAttempts   *prometheus.CounterVec
	rateLimitBlocks prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udb_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "udb_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udb_commits_total",
			Help: "Unit-of-work commits by outcome.",
		}, []string{"outcome"}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "udb_commit_duration_seconds",
			Help:    "Flush pipeline duration including hooks.",
			Buckets: prometheus.DefBuckets,
		}),
		ruleRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udb_rule_runs_total",
			Help: "Rule engine executions by outcome.",
		}, []string{"outcome"}),
		ruleViolations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "udb_rule_violations",
			Help: "Open rule violations after the last full run.",
		}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udb_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		rateLimitBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "udb_rate_limit_blocks_total",
			Help: "Requests refused by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.commitsTotal,
		m.commitDuration,
		m.ruleRunsTotal,
		m.ruleViolations,
		m.loginAttempts,
		m.rateLimitBlocks,
	)
	return m
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCommit(err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
	m.commitDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRuleRun(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ruleRunsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetOpenViolations(n int) {
	m.ruleViolations.Set(float64(n))
}

func (m *Metrics) ObserveLogin(ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRateLimitBlock() {
	m.rateLimitBlocks.Inc()
}
