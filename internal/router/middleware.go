package router

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const contextURL = "baseURL"

// URLMiddleware makes the public URL of the API available to handlers.
func URLMiddleware(url *url.URL) gin.HandlerFunc {
	base := ""
	if url != nil {
		base = strings.TrimSuffix(url.String(), "/")
	}

	return func(c *gin.Context) {
		c.Set(contextURL, base)
		c.Next()
	}
}

func baseURL(c *gin.Context) string {
	return c.GetString(contextURL)
}

var requestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "requests_total",
		Help: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	},
	[]string{"code", "method", "url"},
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "request_duration_seconds",
		Help: "The HTTP request latencies in seconds.",
	},
	[]string{"code", "method", "url"},
)

// registerPrometheusMetrics registers all collectors with the default
// registry. If one cannot be registered, none is.
func registerPrometheusMetrics(collectors []prometheus.Collector) error {
	for i, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			unregisterPrometheusMetrics(collectors[:i])
			return fmt.Errorf("could not register %T with Prometheus: %w", c, err)
		}
	}

	return nil
}

// unregisterPrometheusMetrics unregisters all collectors.
//
// This is needed to cleanly exit and to set up the router more than once
// in tests.
func unregisterPrometheusMetrics(collectors []prometheus.Collector) bool {
	ok := true
	for _, c := range collectors {
		if !prometheus.Unregister(c) {
			ok = false
		}
	}

	return ok
}

// MetricsMiddleware updates Prometheus metrics.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		elapsed := float64(time.Since(start)) / float64(time.Second)

		// Replace all URL parameters with their name to reduce cardinality
		// https://prometheus.io/docs/practices/naming/#labels
		url := c.Request.URL.Path
		for _, p := range c.Params {
			url = strings.Replace(url, p.Value, fmt.Sprintf(":%s", p.Key), 1)
		}

		requestDuration.WithLabelValues(status, c.Request.Method, url).Observe(elapsed)
		requestCount.WithLabelValues(status, c.Request.Method, url).Inc()
	}
}
