package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors for the story viewer.
type Metrics struct {
	registry *prometheus.Registry

	SessionsOpened   prometheus.Counter
	SessionsClosed   prometheus.Counter
	SessionsEvicted  prometheus.Counter
	ViewIncrements   prometheus.Counter
	ViewSyncFailures prometheus.Counter
	FeedLoadFailures prometheus.Counter

	httpStatus   *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_sessions_opened_total",
			Help: "Total number of playback sessions opened",
		}),
		SessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_sessions_closed_total",
			Help: "Total number of playback sessions closed",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_sessions_evicted_total",
			Help: "Total number of idle playback sessions evicted",
		}),
		ViewIncrements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_view_increments_total",
			Help: "Total number of story view count increments",
		}),
		ViewSyncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_view_sync_failures_total",
			Help: "Total number of failed view count sync attempts",
		}),
		FeedLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyreel_feed_load_failures_total",
			Help: "Total number of failed story feed loads",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyreel_http_status_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyreel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.SessionsOpened,
		m.SessionsClosed,
		m.SessionsEvicted,
		m.ViewIncrements,
		m.ViewSyncFailures,
		m.FeedLoadFailures,
		m.httpStatus,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns the scrape endpoint handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
