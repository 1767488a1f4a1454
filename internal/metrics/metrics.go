// Package metrics exposes Prometheus collectors for the portfolio API.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RateLimited      *prometheus.CounterVec
	Replies          *prometheus.CounterVec
	ReplyDuration    *prometheus.HistogramVec
	EmailsSent       prometheus.Counter
	EmailsFailed     prometheus.Counter
	Submissions      prometheus.Counter
	RateLimiterKeys  prometheus.GaugeFunc
	declinedMatchers []error
}

// New registers all collectors, plus the Go and process collectors, on a new
// registry. limiterKeys may be nil. Reply errors matching one of declined are
// counted with outcome "declined" instead of "error".
func New(limiterKeys func() int, declined ...error) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by policy",
		}, []string{"policy"}),
		Replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_assistant_replies_total",
			Help: "Responder attempts by source and outcome",
		}, []string{"source", "outcome"}),
		ReplyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portfolio_assistant_reply_duration_seconds",
			Help:    "Responder latency by source",
			Buckets: []float64{.005, .05, .25, .5, 1, 2, 4, 8, 16},
		}, []string{"source"}),
		EmailsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_emails_sent_total",
			Help: "Contact notifications delivered",
		}),
		EmailsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_emails_failed_total",
			Help: "Contact notifications not delivered",
		}),
		Submissions: f.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_contact_submissions_total",
			Help: "Contact submissions stored",
		}),
		declinedMatchers: declined,
	}
	if limiterKeys != nil {
		m.RateLimiterKeys = f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "portfolio_rate_limiter_keys",
			Help: "Client keys currently tracked by the in-memory rate limiter",
		}, func() float64 { return float64(limiterKeys()) })
	}
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route, method, code string, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.Requests.WithLabelValues(route, method, code).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RecordRateLimited counts a rejected request.
func (m *Metrics) RecordRateLimited(policy string) {
	m.RateLimited.WithLabelValues(policy).Inc()
}

// RecordReply implements assistant.Recorder.
func (m *Metrics) RecordReply(source string, err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		for _, d := range m.declinedMatchers {
			if errors.Is(err, d) {
				outcome = "declined"
				break
			}
		}
	}
	m.Replies.WithLabelValues(source, outcome).Inc()
	m.ReplyDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

// RecordEmail implements notify.Outcome.
func (m *Metrics) RecordEmail(sent bool) {
	if sent {
		m.EmailsSent.Inc()
	} else {
		m.EmailsFailed.Inc()
	}
}

// RecordSubmission counts a stored contact submission.
func (m *Metrics) RecordSubmission() {
	m.Submissions.Inc()
}
