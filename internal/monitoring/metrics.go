// Package monitoring exposes prometheus metrics for the kernel, scheduler,
// and HTTP surface.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Kernel metrics
	ProcessesLive       prometheus.Gauge
	ProcessesCreated    prometheus.Gauge
	ProcessesTerminated prometheus.Gauge
	MemoryUsed          prometheus.Gauge
	MessagesSent        prometheus.Gauge

	// Scheduler metrics
	SchedulerRunning prometheus.Gauge
	ReadyProcesses   prometheus.Gauge
}

// NewMetrics creates and registers all metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microkernel_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "microkernel_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
		ProcessesLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microkernel_processes_live",
			Help: "Number of live processes in the table",
		}),
		ProcessesCreated: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microkernel_processes_created_total",
			Help: "Total processes created",
		}),
		ProcessesTerminated: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microkernel_processes_terminated_total",
			Help: "Total processes terminated",
		}),
		MemoryUsed: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microkernel_memory_used_bytes",
			Help: "Simulated memory pool usage",
		}),
		MessagesSent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microkernel_messages_sent_total",
			Help: "Total IPC messages sent",
		}),
		SchedulerRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microkernel_scheduler_running",
			Help: "Whether the scheduling worker is active",
		}),
		ReadyProcesses: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "microkernel_ready_processes",
			Help: "Number of processes in the ready set",
		}),
	}
}

// Middleware records request counts and latencies.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		m.RequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the prometheus scrape endpoint.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
