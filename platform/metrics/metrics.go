// Package metrics holds the Prometheus collectors for the service.
// This is part of the platform layer and contains no business logic.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AssignmentDecisions *prometheus.CounterVec
	StatusTransitions   *prometheus.CounterVec
	ImportedRows        *prometheus.CounterVec
	FollowUpsDue        prometheus.Counter
}

// New creates a Metrics instance registered on reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AssignmentDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_assignment_decisions_total",
				Help: "Assignment decisions by strategy and outcome",
			},
			[]string{"strategy", "outcome"}, // outcome: assigned, no_match, empty_assignees, error
		),
		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_status_transitions_total",
				Help: "Applied lead status transitions",
			},
			[]string{"from", "to"},
		),
		ImportedRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_import_rows_total",
				Help: "Bulk import rows by outcome",
			},
			[]string{"outcome"}, // created, failed
		),
		FollowUpsDue: factory.NewCounter(prometheus.CounterOpts{
			Name: "lead_follow_ups_due_total",
			Help: "Follow-ups that reached their due date",
		}),
	}
}

// Middleware records request counts and latency per route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes g in the Prometheus text format. A nil g uses the default
// gatherer.
func Handler(g prometheus.Gatherer) gin.HandlerFunc {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
