package httptransport

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wiiks",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wiiks",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-caller rate limiter.",
	})
)

func init() {
	prometheus.MustRegister(requestCounter, requestDuration, rateLimited)
}

func observeRequest(method, route string, status int, took time.Duration) {
	requestCounter.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
