package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// outcome: ok, missing_parameter, storage_unavailable, folder_not_found, no_pages, sign_failed
	PageResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_page_resolutions_total",
			Help: "Exam page resolutions by outcome",
		},
		[]string{"outcome"},
	)
)

// Metrics records request counts and latencies keyed by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
